package views

import (
	_ "embed"
	"net/http"

	"github.com/2beens/exercisetracker/pkg"
)

//go:embed index.html
var indexHTML []byte

func HandleIndex(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteResponseBytesOK(w, pkg.ContentType.HTML, indexHTML)
}
