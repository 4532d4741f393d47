package ports

type Metrics interface {
	ApplicationSubmitted(kind, outcome string)
	AutoApproval(kind, outcome string)
	Registration(outcome string)
	Reverification(outcome string)
	OrphanHealed(kind string)
}
