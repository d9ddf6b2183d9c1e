// Command conductor serves a router file. Renderer modules are loaded as Go
// plugins (.so files exporting Render); applications with compiled-in
// renderers build their own binary around app.NewRootCommand.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/karloscodes/conductor/app"
)

func main() {
	root := app.NewRootCommand("conductor", "Serve declarative JSON routes")
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}
