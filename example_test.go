package minijinja_test

import (
	"errors"
	"fmt"
	"log"

	minijinja "github.com/mitsuhiko/minijinja/minijinja-cabi-go"
)

func Example() {
	env := minijinja.NewEnvironment()
	err := env.AddTemplate("greeting.txt", "Hello {{ name }}!\n{% for item in items %}- {{ item }}\n{% endfor %}")
	if err != nil {
		log.Fatal(err)
	}

	tmpl, err := env.GetTemplate("greeting.txt")
	if err != nil {
		log.Fatal(err)
	}
	out, err := tmpl.Render(map[string]any{
		"name":  "Alice",
		"items": []string{"apples", "oranges"},
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Print(out)
	// Output:
	// Hello Alice!
	// - apples
	// - oranges
}

func ExampleError() {
	env := minijinja.NewEnvironment()
	env.SetUndefinedBehavior(minijinja.UndefinedStrict)

	tmpl, err := env.TemplateFromNamedString("strict.txt", "{{ missing }}")
	if err != nil {
		log.Fatal(err)
	}
	_, err = tmpl.Render(nil)

	var tmplErr *minijinja.Error
	if errors.As(err, &tmplErr) {
		fmt.Println(tmplErr.Kind)
	}
	// Output:
	// undefined value
}
