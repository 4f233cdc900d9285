package program

import "github.com/hashicorp/hcl/v2"

// fileRoot decodes every top-level block a program file may contain.
type fileRoot struct {
	Bases        []*baseBlock        `hcl:"base,block"`
	Instructions []*instructionBlock `hcl:"instruction,block"`
	Remain       hcl.Body            `hcl:",remain"`
}

// baseBlock declares one named base array. Shape is accepted but not read
// by the loader: the Views it builds carry only the Base, with no rank,
// shape or stride.
type baseBlock struct {
	Name  string  `hcl:"name,label"`
	Shape []int64 `hcl:"shape,optional"`
}

// instructionBlock is one recorded operation. Which of Out/In/Left/Right/
// Constant are meaningful depends on Opcode's arity: the loader reads only
// the fields node.Arity calls for (a missing base reference fails with
// ErrUnknownBase) and ignores the rest. For "userfunc" it sets Nout to 1
// and Nin to the number of In/Left/Right fields present;
// UserFuncNout/UserFuncNin are not read.
type instructionBlock struct {
	Opcode   string   `hcl:"opcode,label"`
	Out      string   `hcl:"out,optional"`
	In       string   `hcl:"in,optional"`
	Left     string   `hcl:"left,optional"`
	Right    string   `hcl:"right,optional"`
	Constant *float64 `hcl:"constant,optional"`

	// Only meaningful when Opcode == "userfunc".
	UserFuncName string `hcl:"userfunc_name,optional"`
	UserFuncNout int    `hcl:"userfunc_nout,optional"`
	UserFuncNin  int    `hcl:"userfunc_nin,optional"`
}
