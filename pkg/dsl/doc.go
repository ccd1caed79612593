/*
Package dsl provides a fluent Go builder for taxgraph node definitions.

It lets callers describe a catalog in Go, with type checking and IDE
completion, instead of loading a YAML rule file.

Example usage:

	b := dsl.New()

	b.Input("wages").Number().NonNegative().Default(0.0)
	b.Input("interest").Number().Default(0.0)
	b.Sum("total_income", "wages", "interest")

	b.Computed("child_credit", "qualifying_children").
		Describe("2,000 per qualifying child").
		When(func(ctx domain.EvalContext) bool { return ctx.Number("qualifying_children") > 0 }).
		Compute(dsl.Scale("qualifying_children", 2000))

	if err := b.RegisterTo(engine); err != nil {
		log.Fatal(err)
	}

Single definitions can also be built without a Builder:

	def := dsl.Input("wages").Number().Build()
*/
package dsl
