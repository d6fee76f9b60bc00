package dashboard

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"busops/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newAPI serves routes on a test server and returns a client signed in as a manager.
func newAPI(t *testing.T, setup func(r *gin.Engine)) *Client {
	t.Helper()
	r := gin.New()
	setup(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	s := NewSession("tok", models.User{Name: "Mala", Role: models.RoleManager})
	return NewClient(srv.URL+"/api", s, WithHTTPClient(srv.Client()))
}

type note struct {
	level Level
	msg   string
}

// notes records notifications.
type notes struct {
	mu  sync.Mutex
	got []note
}

func (n *notes) Notify(level Level, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, note{level, msg})
}

func (n *notes) all() []note {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]note(nil), n.got...)
}

func always(answer bool) ConfirmFunc {
	return func(context.Context, string) bool { return answer }
}
