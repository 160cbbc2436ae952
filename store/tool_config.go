package store

// ToolConfig is one admin-registered tool the tool handler can surface.
// Names are unique; creating a duplicate surfaces a conflict.
type ToolConfig struct {
	Name        string
	Description string
	Endpoint    string
	Schema      JSONMap // JSON schema for the tool arguments
	Triggers    []string
	Enabled     bool
	CreatedTs   int64
	UpdatedTs   int64
	ID          int32
}

type FindToolConfig struct {
	ID      *int32
	Name    *string
	Enabled *bool
}

type UpdateToolConfig struct {
	Description *string
	Endpoint    *string
	Schema      *JSONMap
	Triggers    *[]string
	Enabled     *bool
	UpdatedTs   *int64
	ID          int32
}

type DeleteToolConfig struct {
	ID int32
}
