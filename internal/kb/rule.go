package kb

// Rule states that target can be derived from args via relation.
type Rule struct {
	name        string
	description string
	relation    *Relation
	args        []*Parameter
	target      *Parameter
}

func (r *Rule) Name() string { return r.name }
func (r *Rule) Description() string { return r.description }
func (r *Rule) Relation() *Relation { return r.relation }
func (r *Rule) Target() *Parameter { return r.target }
func (r *Rule) Args() []*Parameter { return append([]*Parameter(nil), r.args...) }
