package queue

import (
	"encoding/json"
	"testing"
	"time"

	"dadchain/internal/chain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nats-io/nats.go"
)

type liked struct {
	JokeID uint64         `json:"jokeId"`
	Liker  common.Address `json:"liker"`
}

func receipt() *chain.Receipt {
	contract := common.HexToAddress("0x00000000000000000000000000000000000000c2")
	liker := common.HexToAddress("0x00000000000000000000000000000000000000a2")
	return &chain.Receipt{
		Record: chain.Record{
			Seq:  7,
			Hash: common.HexToHash("0xabc"),
			Time: time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
		},
		Events: []chain.Event{
			{Contract: contract, Name: "Approval", Data: map[string]string{"owner": "x"}},
			{Contract: contract, Name: "JokeLiked", Data: liked{JokeID: 3, Liker: liker}},
		},
	}
}

func TestSubject(t *testing.T) {
	if got := Subject("JokeSubmitted"); got != "dadchain.events.JokeSubmitted" {
		t.Errorf("Subject() = %v", got)
	}
}

func TestMessages(t *testing.T) {
	msgs, err := Messages(receipt())
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}

	if len(msgs) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(msgs))
	}

	msg := msgs[1]
	if msg.Seq != 7 || msg.Index != 1 || msg.Name != "JokeLiked" {
		t.Errorf("Unexpected message header: %+v", msg)
	}
	if msg.ID() != "7-1" {
		t.Errorf("ID() = %v, want 7-1", msg.ID())
	}
	if !msg.EmittedAt.Equal(time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)) {
		t.Errorf("EmittedAt = %v", msg.EmittedAt)
	}

	var data liked
	if err := msg.Decode(&data); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if data.JokeID != 3 {
		t.Errorf("JokeID = %v, want 3", data.JokeID)
	}
}

func TestEventMessageJSON(t *testing.T) {
	msgs, _ := Messages(receipt())

	data, err := json.Marshal(msgs[0])
	if err != nil {
		t.Fatalf("Failed to marshal EventMessage: %v", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Failed to unmarshal EventMessage: %v", err)
	}
	for _, key := range []string{"seq", "tx_hash", "index", "contract", "name", "data", "emitted_at"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("Missing field %q in %s", key, data)
		}
	}
}

func TestMessagesUnmarshalableEvent(t *testing.T) {
	rcpt := receipt()
	rcpt.Events = append(rcpt.Events, chain.Event{Name: "Broken", Data: make(chan int)})

	if _, err := Messages(rcpt); err == nil {
		t.Error("Expected error for unmarshalable event data")
	}
}

// ensureStream looks up and creates streams through the same handle that
// publishes and subscribes, so it has to carry both method sets.
func TestJetStreamHandleManagesStreams(t *testing.T) {
	var n NATS
	var manager nats.JetStreamManager = n.jetstream
	var stream nats.JetStream = n.jetstream
	if manager != nil || stream != nil {
		t.Error("Expected a zero NATS to hold no JetStream handle")
	}
}
