package all

import (
	"testing"

	"github.com/jrwils/sparkifydb-pg/internal/storage"
)

func TestAllKindsRegistered(t *testing.T) {
	t.Parallel()

	kinds := map[string]bool{}
	for _, k := range storage.ListKinds() {
		kinds[k] = true
	}
	for _, want := range []string{"mssql", "mysql", "postgres", "sqlite"} {
		if !kinds[want] {
			t.Errorf("kind %q not registered; have %v", want, storage.ListKinds())
		}
	}
}
