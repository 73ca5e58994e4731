package rpc

import "github.com/cratenav/cratenav/internal/index"

// LoadRequest is the request body for POST /load. Dir and Files are
// alternatives; when both are set, Files wins.
type LoadRequest struct {
	Dir   string   `json:"dir,omitempty"`
	Files []string `json:"files,omitempty"`
}

// LoadResult reports the outcome of loading one fragment file.
type LoadResult struct {
	Path            string `json:"path"`
	Producer        string `json:"producer,omitempty"`
	ImplementorKeys int    `json:"implementor_keys"`
	SidebarKeys     int    `json:"sidebar_keys"`
	Error           string `json:"error,omitempty"`
}

// ProgressLine is a single line of NDJSON streamed from the load endpoint.
type ProgressLine struct {
	Type    string      `json:"type"` // "progress" or "result"
	Message string      `json:"message,omitempty"`
	Result  *LoadResult `json:"result,omitempty"`
}

// ImplementorsRequest is the request body for POST /implementors.
type ImplementorsRequest struct {
	Trait string `json:"trait"`
}

// ImplementorsResponse is the response body for POST /implementors.
type ImplementorsResponse struct {
	Trait        string              `json:"trait"`
	Implementors []index.Implementor `json:"implementors"`
	Markdown     string              `json:"markdown"`
}

// SidebarRequest is the request body for POST /sidebar.
type SidebarRequest struct {
	Module string `json:"module"`
}

// SidebarResponse is the response body for POST /sidebar. Items stay flat and
// ordered; Groups is the kind projection the renderer also uses.
type SidebarResponse struct {
	Module   string                                 `json:"module"`
	Items    []index.SidebarItem                    `json:"items"`
	Groups   map[index.ItemKind][]index.SidebarItem `json:"groups"`
	Markdown string                                 `json:"markdown"`
}

// StatusResponse is the response body for GET /status.
type StatusResponse struct {
	Producers    []string `json:"producers"`
	Traits       int      `json:"traits"`
	Modules      int      `json:"modules"`
	Implementors int      `json:"implementors"`
	SidebarItems int      `json:"sidebar_items"`
}
