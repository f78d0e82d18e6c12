package planner

import (
	"fmt"
	"slices"

	"mit.edu/dsg/planopt/common"
	"mit.edu/dsg/planopt/connector"
)

// TableScanNode reads a table through its connector handle. Columns[i] is the
// connector column behind Outputs()[i].
type TableScanNode struct {
	planNode
	Table   connector.TableHandle
	Columns []string
}

func NewTableScanNode(id PlanNodeID, table connector.TableHandle, outputs []Symbol, columns []string) *TableScanNode {
	common.Assert(len(outputs) == len(columns), "scan of %s has %d outputs but %d columns", table, len(outputs), len(columns))
	return &TableScanNode{
		planNode: planNode{id: id, outputs: cloneSymbols(outputs)},
		Table:    table,
		Columns:  slices.Clone(columns),
	}
}

// WithTable returns a scan of a different handle, reusing this scan's outputs.
func (n *TableScanNode) WithTable(id PlanNodeID, table connector.TableHandle) *TableScanNode {
	return NewTableScanNode(id, table, n.outputs, n.Columns)
}

func (n *TableScanNode) Kind() Kind {
	return KindTableScan
}

func (n *TableScanNode) Sources() []PlanNode {
	return nil
}

func (n *TableScanNode) ReplaceChildren(children []PlanNode) PlanNode {
	checkChildren(n, children, 0)
	return n
}

func (n *TableScanNode) String() string {
	return fmt.Sprintf("TableScan[%d]: %s %v", n.id, n.Table, OutputNames(n.outputs))
}
