package main

// Plugin blank imports — each import activates a self-registering plugin
// factory. Add new plugins here as they are implemented; the --plugins
// flag selects which registered plugins actually load.
import (
	_ "github.com/Strob0t/dockside/internal/plugin/monitor"
)
