package loader

// manifest is the subset of dbt's manifest.json the loader reads.
type manifest struct {
	Metadata struct {
		ProjectName string `json:"project_name"`
		DbtVersion  string `json:"dbt_version"`
	} `json:"metadata"`
	Nodes map[string]manifestNode `json:"nodes"`
}

type manifestNode struct {
	UniqueID         string                    `json:"unique_id"`
	Name             string                    `json:"name"`
	ResourceType     string                    `json:"resource_type"`
	PackageName      string                    `json:"package_name"`
	Path             string                    `json:"path"`
	OriginalFilePath string                    `json:"original_file_path"`
	Description      string                    `json:"description"`
	Tags             []string                  `json:"tags"`
	Config           nodeConfig                `json:"config"`
	Columns          map[string]manifestColumn `json:"columns"`
	DependsOn        struct {
		Nodes []string `json:"nodes"`
	} `json:"depends_on"`

	RawCode      string `json:"raw_code"`
	RawSQL       string `json:"raw_sql"`
	CompiledCode string `json:"compiled_code"`
	CompiledSQL  string `json:"compiled_sql"`

	// test nodes
	AttachedNode string `json:"attached_node"`
	ColumnName   string `json:"column_name"`
	TestMetadata *struct {
		Name   string         `json:"name"`
		Kwargs map[string]any `json:"kwargs"`
	} `json:"test_metadata"`
}

type nodeConfig struct {
	Materialized string `json:"materialized"`
}

type manifestColumn struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	DataType    string `json:"data_type"`
}

// compiled returns the compiled SQL embedded in the manifest, then the raw
// SQL, whichever is set first.
func (n *manifestNode) compiled() string {
	for _, s := range []string{n.CompiledCode, n.CompiledSQL, n.RawCode, n.RawSQL} {
		if s != "" {
			return s
		}
	}
	return ""
}

// testTarget returns the model and column a test node is attached to.
func (n *manifestNode) testTarget() (modelID, column string) {
	modelID = n.AttachedNode
	if modelID == "" {
		for _, dep := range n.DependsOn.Nodes {
			if isModelID(dep) {
				modelID = dep
				break
			}
		}
	}
	column = n.ColumnName
	if column == "" && n.TestMetadata != nil {
		if c, ok := n.TestMetadata.Kwargs["column_name"].(string); ok {
			column = c
		}
	}
	return modelID, column
}
