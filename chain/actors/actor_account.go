package actors

// AccountActor is the code every plain identity carries. It holds no
// state and exports no methods beyond bare value receipt (method 0,
// handled by the VM before dispatch).
type AccountActor struct{}

func (AccountActor) Exports() []interface{} {
	return []interface{}{
		1: nil,
	}
}
