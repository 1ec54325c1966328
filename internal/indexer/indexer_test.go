package indexer

import (
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"dadchain/internal/ledger"
	"dadchain/internal/models"
	"dadchain/internal/queue"
	"dadchain/internal/token"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	core  = common.HexToAddress("0x00000000000000000000000000000000000000c2")
)

func newStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open("sqlite://" + filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	store, err := NewStore(db)
	require.NoError(t, err)
	return store
}

func message(t *testing.T, seq uint64, index int, name string, data any) *queue.EventMessage {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return &queue.EventMessage{
		Seq:       seq,
		TxHash:    common.BytesToHash([]byte{byte(seq)}),
		Index:     index,
		Contract:  core,
		Name:      name,
		Data:      raw,
		EmittedAt: time.Date(2026, 5, 1, 12, 0, int(seq), 0, time.UTC),
	}
}

func seed(t *testing.T, store *Store) {
	t.Helper()
	tip := models.NewAmount(big.NewInt(1_000_000))
	msgs := []*queue.EventMessage{
		message(t, 3, 0, "JokeSubmitted", ledger.JokeSubmitted{ID: 1, Creator: alice, Content: "first"}),
		message(t, 4, 0, "JokeLiked", ledger.JokeLiked{JokeID: 1, Liker: bob}),
		message(t, 5, 0, "Transfer", token.Transfer{From: bob, To: alice, Value: tip}),
		message(t, 5, 1, "JokeTipped", ledger.JokeTipped{JokeID: 1, Tipper: bob, Creator: alice, Amount: tip}),
	}
	for _, msg := range msgs {
		require.NoError(t, store.Handle(msg))
	}
}

func TestOpenRejectsUnknownScheme(t *testing.T) {
	_, err := Open("mysql://localhost/index")
	require.ErrorIs(t, err, ErrInvalidDatabaseURL)
}

func TestHandleProjectsFields(t *testing.T) {
	store := newStore(t)
	seed(t, store)

	events, err := store.Recent(10, "")
	require.NoError(t, err)
	require.Len(t, events, 4)

	// newest first, then by position within the transaction
	require.Equal(t, "JokeTipped", events[0].Name)
	require.Equal(t, "Transfer", events[1].Name)
	require.Equal(t, "JokeSubmitted", events[3].Name)

	tipped := events[0]
	require.Equal(t, uint64(5), tipped.Seq)
	require.Equal(t, 1, tipped.Position)
	require.Equal(t, bob.Hex(), tipped.Account)
	require.NotNil(t, tipped.JokeID)
	require.Equal(t, uint64(1), *tipped.JokeID)
	require.Equal(t, core.Hex(), tipped.Contract)

	submitted := events[3]
	require.Equal(t, alice.Hex(), submitted.Account)
	require.NotNil(t, submitted.JokeID)
	require.Equal(t, uint64(1), *submitted.JokeID)

	require.Nil(t, events[1].JokeID)
}

func TestHandleIsIdempotent(t *testing.T) {
	store := newStore(t)
	seed(t, store)
	seed(t, store)

	events, err := store.Recent(10, "")
	require.NoError(t, err)
	require.Len(t, events, 4)
}

func TestHandleKeepsUndecodablePayload(t *testing.T) {
	store := newStore(t)
	msg := message(t, 9, 0, "Odd", "not an object")
	require.NoError(t, store.Handle(msg))

	events, err := store.Recent(1, "Odd")
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Empty(t, events[0].Account)
	require.Equal(t, `"not an object"`, events[0].Data)
}

func TestMintIndexedAgainstRecipient(t *testing.T) {
	store := newStore(t)
	mint := token.Transfer{From: common.Address{}, To: alice, Value: models.NewAmount(big.NewInt(5))}
	require.NoError(t, store.Handle(message(t, 2, 0, "Transfer", mint)))

	events, err := store.Recent(1, "Transfer")
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, alice.Hex(), events[0].Account)

	zero, err := store.ByAccount(common.Address{}.Hex(), 10)
	require.NoError(t, err)
	require.Empty(t, zero)
}

func TestRecentFiltersAndLimits(t *testing.T) {
	store := newStore(t)
	seed(t, store)

	events, err := store.Recent(10, "JokeLiked")
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, bob.Hex(), events[0].Account)

	events, err = store.Recent(2, "")
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, uint64(5), events[1].Seq)
}

func TestByAccount(t *testing.T) {
	store := newStore(t)
	seed(t, store)

	events, err := store.ByAccount(bob.Hex(), 10)
	require.NoError(t, err)
	require.Len(t, events, 3)

	events, err = store.ByAccount(alice.Hex(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func newRouter(t *testing.T, store *Store, maxLimit int) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	SetupRoutes(router, &Env{Store: store, MaxLimit: maxLimit})
	return router
}

func get(t *testing.T, router http.Handler, path string) (*httptest.ResponseRecorder, []Event) {
	t.Helper()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

	var body struct {
		Events []Event `json:"events"`
	}
	if w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body.Events
}

func TestEventsEndpoint(t *testing.T) {
	store := newStore(t)
	seed(t, store)
	router := newRouter(t, store, 3)

	w, events := get(t, router, "/events")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, events, 3)

	_, events = get(t, router, "/events?name=JokeSubmitted&limit=50")
	require.Len(t, events, 1)
	require.Equal(t, "JokeSubmitted", events[0].Name)

	w, _ = get(t, router, "/events?limit=zero")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = get(t, router, "/events?limit=-1")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAccountEventsEndpoint(t *testing.T) {
	store := newStore(t)
	seed(t, store)
	router := newRouter(t, store, 0)

	w, events := get(t, router, "/accounts/"+bob.Hex()+"/events")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, events, 3)

	w, _ = get(t, router, "/accounts/bob/events")
	require.Equal(t, http.StatusBadRequest, w.Code)
}
