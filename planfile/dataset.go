package planfile

import (
	"bytes"
	"context"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
	"mit.edu/dsg/planopt/catalog"
	"mit.edu/dsg/planopt/common"
	"mit.edu/dsg/planopt/connector"
	"mit.edu/dsg/planopt/types"
)

// Dataset describes tables and the rows to load into them before a plan runs:
//
//	tables:
//	  - name: orders
//	    columns: ["id:bigint", "name:varchar"]
//	    properties: {metadata_delete: "false"}
//	    rows:
//	      - [1, "first"]
type Dataset struct {
	Tables []TableData `yaml:"tables"`
}

// TableData is one table of a dataset. Columns may be omitted for a table the
// catalog already holds.
type TableData struct {
	Name       string            `yaml:"name"`
	Columns    []string          `yaml:"columns,omitempty"`
	Properties map[string]string `yaml:"properties,omitempty"`
	Rows       [][]any           `yaml:"rows,omitempty"`
}

// Inserter stores rows in a table.
type Inserter interface {
	Insert(ctx context.Context, handle connector.TableHandle, rows [][]common.Value) ([]int64, error)
}

// ParseDataset decodes a dataset description. Unknown fields are rejected.
func ParseDataset(content []byte) (*Dataset, error) {
	var d Dataset
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	if err := decoder.Decode(&d); err != nil {
		return nil, common.WrapError(err, common.InvalidPlanError, "decoding dataset")
	}
	return &d, nil
}

// LoadDataset reads and decodes the dataset in file.
func LoadDataset(file string) (*Dataset, error) {
	content, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrap(err, file)
	}
	d, err := ParseDataset(content)
	return d, errors.Wrap(err, file)
}

// Apply registers the dataset's tables that the catalog does not know yet,
// under connectorName, and inserts every table's rows through inserter. It
// returns the number of rows inserted.
func (d *Dataset) Apply(ctx context.Context, cat *catalog.Catalog, provider catalog.PersistenceProvider, connectorName string, inserter Inserter) (int, error) {
	inserted := 0
	for i, td := range d.Tables {
		path := "tables[" + td.Name + "]"
		table, err := cat.GetTableMetadata(td.Name)
		if common.Classify(err) == common.NoSuchObjectError {
			table, err = addTable(cat, provider, connectorName, td, path)
		}
		if err != nil {
			return inserted, err
		}
		if len(td.Rows) == 0 {
			continue
		}

		rows := make([][]common.Value, len(td.Rows))
		for r, raw := range td.Rows {
			if len(raw) != len(table.Columns) {
				return inserted, invalid(path, "row %d has %d values for %d columns", r, len(raw), len(table.Columns))
			}
			rows[r] = make([]common.Value, len(raw))
			for c, v := range raw {
				value, err := literal(v, table.Columns[c].Type)
				if err != nil {
					return inserted, invalid(path, "row %d column %s: %v", r, table.Columns[c].Name, err)
				}
				rows[r][c] = value
			}
		}
		if _, err := inserter.Insert(ctx, table.Handle(), rows); err != nil {
			return inserted, errors.Wrapf(err, "loading table %d (%s)", i, td.Name)
		}
		inserted += len(rows)
	}
	return inserted, nil
}

func addTable(cat *catalog.Catalog, provider catalog.PersistenceProvider, connectorName string, td TableData, path string) (*catalog.Table, error) {
	if len(td.Columns) == 0 {
		return nil, invalid(path, "new table needs columns")
	}
	columns := make([]catalog.Column, len(td.Columns))
	for i, c := range td.Columns {
		name, typeName, ok := strings.Cut(c, ":")
		if !ok {
			return nil, invalid(path, "column '%s' is not name:type", c)
		}
		typ, err := types.Lookup(typeName)
		if err != nil {
			return nil, errors.Wrap(err, path)
		}
		columns[i] = catalog.Column{Name: name, Type: typ}
	}
	return cat.AddTable(td.Name, connectorName, columns, td.Properties, provider)
}
