package server

import (
	_ "embed"
	"log"
	"regexp"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
)

//go:embed index.html
var indexSource []byte

// indexPage is the minified status page, prepared once at startup.
var indexPage []byte

func init() {
	m := minify.New()
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("text/css", css.Minify)
	m.AddFuncRegexp(regexp.MustCompile("^(application|text)/(x-)?(java|ecma)script$"), js.Minify)

	out, err := m.Bytes("text/html", indexSource)
	if err != nil {
		log.Printf("Minify index page: %v", err)
		indexPage = indexSource
		return
	}
	indexPage = out
}
