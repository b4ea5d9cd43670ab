package server

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lexandro/define-pages-json/tools"
)

// Version is reported to MCP clients.
const Version = "0.1.0"

// Handlers groups the tool handlers registered on the server.
type Handlers struct {
	Update    *tools.UpdateHandler
	List      *tools.ListHandler
	Search    *tools.SearchHandler
	Transform *tools.TransformHandler
	Manifest  *tools.ManifestHandler
	Status    *tools.StatusHandler
}

// Setup creates and configures the MCP server with all tool registrations.
func Setup(h Handlers) *mcp.Server {
	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "define-pages-json",
			Version: Version,
		},
		&mcp.ServerOptions{
			Instructions: `This server owns the project's generated pages.json. Page options are declared with definePage() inside <script setup> of each page component; the manifest is rebuilt from them and from the base config (src/pages.json.{ts,js,json,yaml}).

- Use pages_update after editing page components or the base config (the manifest also updates automatically while the server watches files)
- Use pages_list to see which components are routes, and pages_search to find routes by title or option
- Use pages_manifest to read the generated pages.json instead of opening the file
- Never edit pages.json by hand; it is overwritten on every update`,
		},
	)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name: "pages_update",
		Description: `Regenerate pages.json from page components and the base config.

With changedPath, only that component is re-read and the manifest is rewritten only if its options changed. Without it, every page directory is rescanned.`,
	}, h.Update.Handle)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name: "pages_list",
		Description: `List scanned page components with their routes. Home pages are marked [home].

Pattern examples:
  - "pages/user/**" - routes under pages/user
  - "pages-sub/**" - routes of one sub-package`,
	}, h.List.Handle)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name: "pages_search",
		Description: `Search routes of the generated manifest by route, navigation bar title and page options.

Query formats:
  - Plain text: word-level matching (e.g., "needLogin")
  - "quoted text": exact phrase matching
  - /regex/: regular expression matching
  - empty: every route (combine with routeGlob or subPackage)`,
	}, h.Search.Handle)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "pages_transform",
		Description: "Return a page component's source with the definePage() call removed, as the build emits it.",
	}, h.Transform.Handle)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "pages_manifest",
		Description: `Read the last generated pages.json from memory. Returns numbered lines (format: "N│ content").`,
	}, h.Manifest.Handle)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "pages_status",
		Description: "Show generator status: root, manifest and declaration paths, page counts, sub-packages, base config candidates, memory usage and uptime.",
	}, h.Status.Handle)

	return mcpServer
}
