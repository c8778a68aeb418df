package construct

// reference points at a resource or one of its attributes.
type reference struct {
	target    *CfnResource
	attribute string
}

func (r *reference) local() Token {
	if r.attribute == "" {
		return &intrinsic{name: "Ref", value: r.target.logicalID}
	}
	return &intrinsic{name: "Fn::GetAtt", value: []any{r.target.logicalID, r.attribute}}
}

func (r *reference) Resolve(rc *ResolveContext) (any, error) {
	consumer := rc.Stack()
	if consumer == nil || consumer == r.target.stack {
		return r.local(), nil
	}
	return consumer.importReference(r)
}
