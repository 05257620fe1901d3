package kb

// Known is a parameter value supplied by the caller of a solve. When the same
// parameter appears more than once in a list of knowns, the later entry wins.
type Known struct {
	Param *Parameter
	Value any
}
