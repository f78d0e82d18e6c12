package planner

import (
	"fmt"

	"mit.edu/dsg/planopt/common"
	"mit.edu/dsg/planopt/connector"
)

// DeleteNode deletes, row by row, the rows of Target identified by the RowID
// column of its source. It outputs one row count per page it processes.
type DeleteNode struct {
	planNode
	Source PlanNode
	Target connector.TableHandle
	RowID  Symbol
}

func NewDeleteNode(id PlanNodeID, source PlanNode, target connector.TableHandle, rowID Symbol, output Symbol) *DeleteNode {
	return &DeleteNode{
		planNode: planNode{id: id, outputs: []Symbol{output}},
		Source:   source,
		Target:   target,
		RowID:    rowID,
	}
}

func (n *DeleteNode) Kind() Kind {
	return KindDelete
}

func (n *DeleteNode) Sources() []PlanNode {
	return []PlanNode{n.Source}
}

func (n *DeleteNode) ReplaceChildren(children []PlanNode) PlanNode {
	checkChildren(n, children, 1)
	if children[0] == n.Source {
		return n
	}
	c := *n
	c.Source = children[0]
	return &c
}

func (n *DeleteNode) String() string {
	return fmt.Sprintf("Delete[%d]: %s rowId=%s", n.id, n.Target, n.RowID.Name)
}

// TableFinishNode commits a write to Target and reports the number of rows
// written. It normally has a single output symbol.
type TableFinishNode struct {
	planNode
	Source PlanNode
	Target connector.TableHandle
}

func NewTableFinishNode(id PlanNodeID, source PlanNode, target connector.TableHandle, outputs ...Symbol) *TableFinishNode {
	return &TableFinishNode{
		planNode: planNode{id: id, outputs: cloneSymbols(outputs)},
		Source:   source,
		Target:   target,
	}
}

func (n *TableFinishNode) Kind() Kind {
	return KindTableFinish
}

func (n *TableFinishNode) Sources() []PlanNode {
	return []PlanNode{n.Source}
}

func (n *TableFinishNode) ReplaceChildren(children []PlanNode) PlanNode {
	checkChildren(n, children, 1)
	if children[0] == n.Source {
		return n
	}
	c := *n
	c.Source = children[0]
	return &c
}

func (n *TableFinishNode) String() string {
	return fmt.Sprintf("TableFinish[%d]: %s %v", n.id, n.Target, OutputNames(n.outputs))
}

// MetadataDeleteNode deletes through a connector handle negotiated for the
// purpose; the connector does the work without the engine reading any rows.
type MetadataDeleteNode struct {
	planNode
	Target connector.TableHandle
}

func NewMetadataDeleteNode(id PlanNodeID, target connector.TableHandle, output Symbol) *MetadataDeleteNode {
	return &MetadataDeleteNode{
		planNode: planNode{id: id, outputs: []Symbol{output}},
		Target:   target,
	}
}

func (n *MetadataDeleteNode) Kind() Kind {
	return KindMetadataDelete
}

func (n *MetadataDeleteNode) Sources() []PlanNode {
	return nil
}

func (n *MetadataDeleteNode) ReplaceChildren(children []PlanNode) PlanNode {
	common.Assert(len(children) == 0, "MetadataDelete has no children")
	return n
}

func (n *MetadataDeleteNode) String() string {
	return fmt.Sprintf("MetadataDelete[%d]: %s", n.id, n.Target)
}
