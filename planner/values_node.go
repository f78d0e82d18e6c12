package planner

import (
	"fmt"
	"slices"

	"mit.edu/dsg/planopt/block"
	"mit.edu/dsg/planopt/common"
)

// ValuesNode produces a fixed set of rows held in one block per output.
type ValuesNode struct {
	planNode
	columns  []block.Block
	rowCount int
}

// NewValuesNode builds a values node over columns, one block per output, all
// holding rowCount entries.
func NewValuesNode(id PlanNodeID, outputs []Symbol, rowCount int, columns ...block.Block) *ValuesNode {
	common.Assert(len(outputs) == len(columns), "values node has %d outputs but %d columns", len(outputs), len(columns))
	for i, c := range columns {
		common.Assert(c.PositionCount() == rowCount, "column %s has %d rows, expected %d", outputs[i].Name, c.PositionCount(), rowCount)
	}
	return &ValuesNode{
		planNode: planNode{id: id, outputs: cloneSymbols(outputs)},
		columns:  slices.Clone(columns),
		rowCount: rowCount,
	}
}

// NewEmptyValuesNode returns a values node producing no rows.
func NewEmptyValuesNode(id PlanNodeID, outputs []Symbol) *ValuesNode {
	columns := make([]block.Block, len(outputs))
	for i, s := range outputs {
		columns[i] = s.Type.CreateBuilder(0).Build()
	}
	return NewValuesNode(id, outputs, 0, columns...)
}

// NewValuesNodeFromRows encodes decoded rows through the output types.
func NewValuesNodeFromRows(id PlanNodeID, outputs []Symbol, rows [][]common.Value) *ValuesNode {
	builders := make([]block.Builder, len(outputs))
	for i, s := range outputs {
		builders[i] = s.Type.CreateBuilder(len(rows))
	}
	for r, row := range rows {
		common.Assert(len(row) == len(outputs), "row %d has %d values, expected %d", r, len(row), len(outputs))
		for i, v := range row {
			outputs[i].Type.WriteValue(builders[i], v)
		}
	}
	columns := make([]block.Block, len(outputs))
	for i, b := range builders {
		columns[i] = b.Build()
	}
	return NewValuesNode(id, outputs, len(rows), columns...)
}

func (n *ValuesNode) RowCount() int {
	return n.rowCount
}

// Column returns the block holding the values of output i.
func (n *ValuesNode) Column(i int) block.Block {
	return n.columns[i]
}

// Value decodes the value of output channel at row.
func (n *ValuesNode) Value(row, channel int) common.Value {
	return n.outputs[channel].Type.ObjectValue(n.columns[channel], row)
}

// Row returns a Row view of one row for expression evaluation.
func (n *ValuesNode) Row(row int) Row {
	values := make([]common.Value, len(n.outputs))
	for i := range n.outputs {
		values[i] = n.Value(row, i)
	}
	return NewRow(n.outputs, values)
}

func (n *ValuesNode) Kind() Kind {
	return KindValues
}

func (n *ValuesNode) Sources() []PlanNode {
	return nil
}

func (n *ValuesNode) ReplaceChildren(children []PlanNode) PlanNode {
	checkChildren(n, children, 0)
	return n
}

func (n *ValuesNode) String() string {
	return fmt.Sprintf("Values[%d]: %d rows %v", n.id, n.rowCount, OutputNames(n.outputs))
}
