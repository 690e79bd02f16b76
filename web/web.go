package web

import (
	"embed"
	"io/fs"
)

//go:embed public
var assets embed.FS

// Public returns the bundled chat front-end rooted at its index.html.
func Public() fs.FS {
	sub, err := fs.Sub(assets, "public")
	if err != nil {
		panic(err)
	}
	return sub
}
