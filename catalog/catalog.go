package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"
	"mit.edu/dsg/planopt/common"
	"mit.edu/dsg/planopt/connector"
	"mit.edu/dsg/planopt/types"
)

// Catalog holds the metadata behind table handles: which connector serves a
// table, its columns and their types, and per-table properties connectors
// consult during negotiation. The catalog is serialized as a single JSON blob
// through a PersistenceProvider.
//
// Tables are only ever added. A table handle minted for a compilation stays
// valid for as long as the process runs.
type Catalog struct {
	catalogState

	mu       sync.RWMutex
	tableMap map[string]*Table // TableName -> Table
	oidMap   map[common.ObjectID]*Table
}

// Column represents the basic unit of a table schema.
type Column struct {
	Name string
	Type types.Type
}

type columnJSON struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func (c Column) MarshalJSON() ([]byte, error) {
	return json.Marshal(columnJSON{Name: c.Name, Type: c.Type.Name()})
}

func (c *Column) UnmarshalJSON(data []byte) error {
	var raw columnJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t, err := types.Lookup(raw.Type)
	if err != nil {
		return errors.Wrapf(err, "column '%s'", raw.Name)
	}
	c.Name, c.Type = raw.Name, t
	return nil
}

// Table is the primary metadata structure. It groups columns under a unique
// ObjectID and names the connector (catalog) that stores the table.
type Table struct {
	Oid        common.ObjectID   `json:"oid"`
	Name       string            `json:"name"`
	Connector  string            `json:"connector"`
	Columns    []Column          `json:"columns"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Column returns the column called name and its position.
func (t *Table) Column(name string) (Column, int, bool) {
	for i, c := range t.Columns {
		if c.Name == name {
			return c, i, true
		}
	}
	return Column{}, -1, false
}

// Property returns the table property key, or def when it is not set.
func (t *Table) Property(key, def string) string {
	if v, ok := t.Properties[key]; ok {
		return v
	}
	return def
}

// Handle returns a table handle for t with no connector payload.
func (t *Table) Handle() connector.TableHandle {
	return connector.TableHandle{Catalog: t.Connector, Table: t.Name, Oid: t.Oid}
}

func (t *Table) String() string {
	b, _ := json.MarshalIndent(t, "", "  ")
	return string(b)
}

// PersistenceProvider abstracts how the catalog is saved to and loaded from disk.
type PersistenceProvider interface {
	LoadCatalogState() (json string, err error)
	SaveCatalogState(json string) error
}

type catalogState struct {
	NextId uint32   `json:"next_id"`
	Tables []*Table `json:"tables"`
}

func (c *Catalog) String() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, _ := json.MarshalIndent(c.catalogState, "", "  ")
	return string(b)
}

func (c *Catalog) toJSON() (string, error) {
	b, err := json.MarshalIndent(c.catalogState, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (c *Catalog) fromJSON(jsonData string) error {
	if err := json.Unmarshal([]byte(jsonData), &c.catalogState); err != nil {
		return err
	}
	for _, t := range c.Tables {
		c.tableMap[t.Name] = t
		c.oidMap[t.Oid] = t
	}
	return nil
}

// NewCatalog initializes a catalog. It attempts to load existing state
// from the provider; if no state exists, it starts with an empty database.
func NewCatalog(provider PersistenceProvider) (*Catalog, error) {
	result := &Catalog{
		catalogState: catalogState{
			NextId: 0,
			Tables: make([]*Table, 0),
		},
		tableMap: make(map[string]*Table),
		oidMap:   make(map[common.ObjectID]*Table),
	}

	jsonData, err := provider.LoadCatalogState()
	if errors.Is(err, os.ErrNotExist) {
		// Start from scratch
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	if err = result.fromJSON(jsonData); err != nil {
		// Parsing errors are fatal system errors, usually indicating corruption
		return nil, errors.Wrap(err, "failed to parse catalog state")
	}

	return result, nil
}

// AddTable registers a new table served by connectorName. It assigns a
// globally unique ObjectID to the table and persists the updated state. If the
// table with that name already exists, it returns DuplicateObjectError.
func (c *Catalog) AddTable(tableName string, connectorName string, columns []Column, properties map[string]string, provider PersistenceProvider) (*Table, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.tableMap[tableName]; exists {
		return nil, common.NewError(common.DuplicateObjectError, "table '%s' already exists", tableName)
	}
	seen := make(map[string]bool, len(columns))
	for _, col := range columns {
		if seen[col.Name] {
			return nil, common.NewError(common.DuplicateObjectError, "column '%s' appears twice in table '%s'", col.Name, tableName)
		}
		seen[col.Name] = true
	}

	// oid 0 is reserved for INVALID
	c.NextId++

	t := &Table{
		Oid:        common.ObjectID(c.NextId),
		Name:       tableName,
		Connector:  connectorName,
		Columns:    columns,
		Properties: properties,
	}

	c.Tables = append(c.Tables, t)
	c.tableMap[tableName] = t
	c.oidMap[t.Oid] = t

	jsonData, err := c.toJSON()
	if err != nil {
		return nil, err
	}
	return t, provider.SaveCatalogState(jsonData)
}

// GetTableMetadata fetches the schema for a specific table name.
func (c *Catalog) GetTableMetadata(tableName string) (*Table, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	table, exists := c.tableMap[tableName]
	if !exists {
		return nil, common.NewError(common.NoSuchObjectError, "table '%s' does not exist", tableName)
	}
	return table, nil
}

// GetTableByOid fetches the schema of the table a handle refers to.
func (c *Catalog) GetTableByOid(oid common.ObjectID) (*Table, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	table, exists := c.oidMap[oid]
	if !exists {
		return nil, common.NewError(common.NoSuchObjectError, "table %d does not exist", oid)
	}
	return table, nil
}

// TablesOf returns the tables served by connectorName.
func (c *Catalog) TablesOf(connectorName string) []*Table {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []*Table
	for _, t := range c.Tables {
		if t.Connector == connectorName {
			out = append(out, t)
		}
	}
	return out
}

const CatalogFileName = "catalog.json"

// RowIDColumn names the hidden column through which connectors expose row ids
// to row by row deletes. It is not part of any table's Columns.
const RowIDColumn = "$row_id"

type DiskCatalogManager struct {
	rootPath string
}

func NewDiskCatalogManager(rootPath string) *DiskCatalogManager {
	return &DiskCatalogManager{
		rootPath: rootPath,
	}
}

// LoadCatalogState implements the catalog.PersistenceProvider interface.
func (dcm *DiskCatalogManager) LoadCatalogState() (string, error) {
	path := filepath.Join(dcm.rootPath, CatalogFileName)
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err // Let the caller (Catalog) handle os.ErrNotExist
	}
	return string(content), nil
}

// SaveCatalogState implements the catalog.PersistenceProvider interface.
func (dcm *DiskCatalogManager) SaveCatalogState(jsonData string) error {
	// Write to a temporary file and rename it over the catalog.
	tmpPath := filepath.Join(dcm.rootPath, CatalogFileName+".tmp")
	finalPath := filepath.Join(dcm.rootPath, CatalogFileName)

	if err := os.WriteFile(tmpPath, []byte(jsonData), 0644); err != nil {
		return err
	}

	return os.Rename(tmpPath, finalPath)
}

// NullPersistence keeps no state. Catalogs built on it start empty and are
// lost with the process.
type NullPersistence struct{}

func (NullPersistence) LoadCatalogState() (string, error) {
	return "", os.ErrNotExist
}

func (NullPersistence) SaveCatalogState(string) error {
	return nil
}
