package execution

import (
	"slices"

	"mit.edu/dsg/planopt/common"
	"mit.edu/dsg/planopt/planner"
)

// HashJoinExecutor implements the hash join algorithm for a join node.
// It builds a hash table from the left child and looks up each row of the right child in it.
// Rows with a NULL key never match.
type HashJoinExecutor struct {
	plan        *planner.JoinNode
	left, right Executor

	// Runtime State
	keyBuffer      []common.Value
	joined         []common.Value
	leftHashTable  *ExecutionHashTable[[][]common.Value]
	currentMatches [][]common.Value // The matching rows from the left side for the current right row
	matchIndex     int              // The index of the next match to emit
	err            error
}

// NewHashJoinExecutor creates a new HashJoinExecutor.
func NewHashJoinExecutor(plan *planner.JoinNode, left Executor, right Executor) *HashJoinExecutor {
	return &HashJoinExecutor{
		plan:  plan,
		left:  left,
		right: right,
	}
}

func (e *HashJoinExecutor) PlanNode() planner.PlanNode {
	return e.plan
}

func (e *HashJoinExecutor) Init(ctx *ExecutorContext) error {
	e.keyBuffer = make([]common.Value, len(e.plan.Criteria))
	e.joined = make([]common.Value, len(e.plan.Outputs()))
	e.leftHashTable = nil
	e.currentMatches = nil
	e.matchIndex = 0
	e.err = nil
	if err := e.left.Init(ctx); err != nil {
		return err
	}
	return e.right.Init(ctx)
}

// key extracts the join key of a row into keyBuffer, reporting false if any
// part of it is NULL.
func (e *HashJoinExecutor) key(source planner.PlanNode, values []common.Value, left bool) bool {
	row := rowOf(source, values)
	for i, c := range e.plan.Criteria {
		s := c.Right
		if left {
			s = c.Left
		}
		v := row.Value(s)
		if v.IsNull() {
			return false
		}
		e.keyBuffer[i] = v
	}
	return true
}

// buildPhase consumes the entire left child and builds the hash table.
func (e *HashJoinExecutor) buildPhase() error {
	e.leftHashTable = NewExecutionHashTable[[][]common.Value]()
	for e.left.Next() {
		values := e.left.Current()
		if !e.key(e.plan.Left, values, true) {
			continue
		}
		existing, _ := e.leftHashTable.Get(e.keyBuffer)
		e.leftHashTable.Insert(e.keyBuffer, append(existing, slices.Clone(values)))
	}
	return e.left.Error()
}

func (e *HashJoinExecutor) Next() bool {
	if e.err != nil {
		return false
	}
	if e.leftHashTable == nil {
		if err := e.buildPhase(); err != nil {
			e.err = err
			return false
		}
	}

	for {
		if e.matchIndex == len(e.currentMatches) {
			// no more matches left for the last right row, fetch the next one
			if !e.right.Next() {
				e.err = e.right.Error()
				return false
			}
			if !e.key(e.plan.Right, e.right.Current(), false) {
				continue
			}
			matches, found := e.leftHashTable.Get(e.keyBuffer)
			if !found {
				continue
			}
			e.currentMatches = matches
			e.matchIndex = 0
		}
		leftRow := e.currentMatches[e.matchIndex]
		e.matchIndex++
		n := copy(e.joined, leftRow)
		copy(e.joined[n:], e.right.Current())
		return true
	}
}

func (e *HashJoinExecutor) Current() []common.Value {
	return e.joined
}

func (e *HashJoinExecutor) Error() error {
	return e.err
}

func (e *HashJoinExecutor) Close() error {
	err1 := e.right.Close()
	err2 := e.left.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
