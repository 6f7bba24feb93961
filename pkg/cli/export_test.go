package cli

import (
	"io"

	"github.com/m-mizutani/fireconf"
	"github.com/secmon-lab/stratagem/pkg/domain/model"
)

func PrintGame(w io.Writer, n int, g *model.GameSummary) {
	newPrinter(w).game(n, g)
}

func PrintRun(w io.Writer, r *model.RunSummary, location string) {
	newPrinter(w).run(r, location)
}

func IndexConfig(prefix string, dimension int) *fireconf.Config {
	return getIndexConfig(prefix, dimension)
}

func LastN[T any](xs []T, n int) []T {
	return lastN(xs, n)
}
