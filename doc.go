/*
Package taxgraph is an incremental computation engine for tax returns.

A return is modelled as a directed acyclic graph of nodes. Input nodes hold
values entered by a preparer, read by OCR or asserted by an override;
computed nodes derive their values from declared dependencies through pure
rules. When an input changes, only the nodes downstream of it are
re-evaluated, in a deterministic topological order, and every pass produces
a trace frame recording what changed and why.

# Concepts

  - Catalog: the registry of node definitions. Registration rejects
    duplicates, unknown dependencies and cycles before anything runs.
  - State: an immutable snapshot of every node's value and status. Every
    pass returns a new State; the prior one is never mutated.
  - Override: a value asserted by a person. The engine never recomputes an
    overridden node until the override is cleared.
  - Applicability: a rule may declare that it does not apply, in which case
    the node is Skipped and its value is absent.
  - Scope: which node instances exist at all for a given tax year, filing
    status and set of repeatable slots.

# Usage

	eng := taxgraph.New()
	eng.MustRegister(
		dsl.Input("wages").Number().NonNegative().Default(0.0).Build(),
		dsl.Input("interest").Number().Default(0.0).Build(),
		dsl.Sum("total_income", "wages", "interest").Build(),
	)

	params := domain.SessionParams{TaxYear: 2024, FilingStatus: domain.FilingSingle}
	res, err := eng.InitializeSession(params)
	if err != nil {
		log.Fatal(err)
	}

	res, err = eng.Process(domain.InputEvent{
		InstanceID: "wages",
		Value:      52000.0,
		Source:     domain.SourcePreparer,
	}, res.State, params)
	if err != nil {
		log.Fatal(err) // *domain.EventError when validation rejects the event
	}

	fmt.Println(res.State.Value("total_income"))

Persistence, locking and transports live in pkg/session, pkg/ports and
pkg/adapters; the engine itself never performs I/O.
*/
package taxgraph
