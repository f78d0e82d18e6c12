package planfile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mit.edu/dsg/planopt/catalog"
	"mit.edu/dsg/planopt/common"
	"mit.edu/dsg/planopt/connector"
)

type recordingInserter struct {
	rows map[string][][]common.Value
}

func (r *recordingInserter) Insert(_ context.Context, handle connector.TableHandle, rows [][]common.Value) ([]int64, error) {
	if r.rows == nil {
		r.rows = make(map[string][][]common.Value)
	}
	r.rows[handle.Table] = append(r.rows[handle.Table], rows...)
	return make([]int64, len(rows)), nil
}

func TestDatasetApply(t *testing.T) {
	cat := testCatalog(t)
	d, err := ParseDataset([]byte(`
tables:
  - name: orders
    rows:
      - [1, "alice"]
      - [2, null]
  - name: archive
    columns: ["id:bigint", "note:varchar"]
    properties: {metadata_delete: "false"}
    rows:
      - [7, "old"]
`))
	require.NoError(t, err)

	inserter := &recordingInserter{}
	n, err := d.Apply(context.Background(), cat, catalog.NullPersistence{}, "memory", inserter)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	archive, err := cat.GetTableMetadata("archive")
	require.NoError(t, err)
	assert.Equal(t, "memory", archive.Connector)
	assert.Equal(t, "false", archive.Property("metadata_delete", "true"))

	require.Len(t, inserter.rows["orders"], 2)
	assert.Equal(t, "alice", inserter.rows["orders"][0][1].StringValue())
	assert.True(t, inserter.rows["orders"][1][1].IsNull())
	assert.Equal(t, int64(7), inserter.rows["archive"][0][0].IntValue())
}

func TestDatasetErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		code    common.ErrorCode
	}{
		{"unknown field", "tables: [{name: orders, rowz: []}]", common.InvalidPlanError},
		{"new table without columns", "tables: [{name: fresh}]", common.InvalidPlanError},
		{"bad column", "tables: [{name: fresh, columns: [id]}]", common.InvalidPlanError},
		{"unknown type", "tables: [{name: fresh, columns: [\"id:decimal\"]}]", common.NoSuchObjectError},
		{"short row", "tables: [{name: orders, rows: [[1]]}]", common.InvalidPlanError},
		{"wrong value type", "tables: [{name: orders, rows: [[\"x\", \"y\"]]}]", common.InvalidPlanError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseDataset([]byte(tt.content))
			if err == nil {
				_, err = d.Apply(context.Background(), testCatalog(t), catalog.NullPersistence{}, "memory", &recordingInserter{})
			}
			require.Error(t, err)
			assert.Equal(t, tt.code, common.Classify(err))
		})
	}
}
