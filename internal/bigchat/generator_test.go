package bigchat

import (
	"strings"
	"testing"
	"time"
)

func tickWindow() (time.Time, time.Time) {
	endAt := time.Now()
	return endAt.Add(-30 * time.Second), endAt
}

func TestGeneratorSeedsAdvisorsAndFirstConversation(t *testing.T) {
	g := NewGenerator(1)

	for i := int64(1); i <= advisorCount; i++ {
		advisor, ok := g.Advisor(i)
		if !ok {
			t.Fatalf("advisor %d missing", i)
		}
		if !strings.HasSuffix(advisor.EmailAddress, "@company.com") {
			t.Fatalf("unexpected advisor email %q", advisor.EmailAddress)
		}
		if advisor.EmailAddress != strings.ToLower(advisor.EmailAddress) {
			t.Fatalf("advisor email not lowercased: %q", advisor.EmailAddress)
		}
	}
	if _, ok := g.Advisor(advisorCount + 1); ok {
		t.Fatal("advisor lookup past the roster must miss")
	}

	conversation, ok := g.Conversation(1)
	if !ok {
		t.Fatal("conversation 1 missing")
	}
	if len(conversation.Events) != 1 || conversation.Events[0].EventName != eventStart {
		t.Fatalf("conversation 1 must open with START, got %+v", conversation.Events)
	}
	if _, ok := g.Conversation(42); ok {
		t.Fatal("unknown conversation lookup must miss")
	}
}

func TestTickNeverEmitsAfterEnd(t *testing.T) {
	g := NewGenerator(7)
	startAt, endAt := tickWindow()
	for i := 0; i < 200; i++ {
		g.Tick(startAt, endAt)
	}

	for id := int64(1); ; id++ {
		conversation, ok := g.Conversation(id)
		if !ok {
			break
		}
		sawEnd := false
		for _, event := range conversation.Events {
			if sawEnd {
				t.Fatalf("conversation %d emitted %s after END", id, event.EventName)
			}
			if event.EventName == eventEnd {
				sawEnd = true
			}
		}
	}
}

func TestTickTransfersAtMostOnceAndToADifferentAdvisor(t *testing.T) {
	g := NewGenerator(11)
	startAt, endAt := tickWindow()
	for i := 0; i < 200; i++ {
		g.Tick(startAt, endAt)
	}

	sawTransfer := false
	for id := int64(1); ; id++ {
		conversation, ok := g.Conversation(id)
		if !ok {
			break
		}
		transfers := 0
		for _, event := range conversation.Events {
			if event.EventName != eventTransfer {
				continue
			}
			transfers++
			sawTransfer = true
			oldID, newID := event.Data["old_advisor_id"], event.Data["new_advisor_id"]
			if oldID == newID {
				t.Fatalf("conversation %d transferred to the same advisor: %v", id, event.Data)
			}
			if oldID != conversation.AdvisorID {
				t.Fatalf("conversation %d transfer names old advisor %v, conversation has %v", id, oldID, conversation.AdvisorID)
			}
		}
		if transfers > 1 {
			t.Fatalf("conversation %d transferred %d times", id, transfers)
		}
	}
	if !sawTransfer {
		t.Fatal("200 ticks produced no transfer; the branch is unreachable")
	}
}

func TestTickTimestampsStayInsideWindow(t *testing.T) {
	g := NewGenerator(3)
	startAt := time.Unix(1690000000, 0)
	endAt := time.Unix(1690000030, 0)

	for i := 0; i < 50; i++ {
		for _, event := range g.Tick(startAt, endAt) {
			if event.EventName == eventStart {
				continue
			}
			if event.EventAt < startAt.Unix() || event.EventAt > endAt.Unix() {
				t.Fatalf("%s event_at %d outside [%d, %d]", event.EventName, event.EventAt, startAt.Unix(), endAt.Unix())
			}
		}
	}
}

func TestTickMessagesCarryText(t *testing.T) {
	g := NewGenerator(5)
	startAt, endAt := tickWindow()

	sawMessage := false
	for i := 0; i < 100; i++ {
		for _, event := range g.Tick(startAt, endAt) {
			if event.EventName != eventMessage {
				continue
			}
			sawMessage = true
			text, ok := event.Data["message"].(string)
			if !ok || len(text) < 2 {
				t.Fatalf("MESSAGE without usable text: %+v", event.Data)
			}
		}
	}
	if !sawMessage {
		t.Fatal("100 ticks produced no message; the branch is unreachable")
	}
}

func TestConversationSnapshotIsIsolated(t *testing.T) {
	g := NewGenerator(9)
	snapshot, ok := g.Conversation(1)
	if !ok {
		t.Fatal("conversation 1 missing")
	}
	snapshot.Events[0].EventName = "MUTATED"

	fresh, _ := g.Conversation(1)
	if fresh.Events[0].EventName != eventStart {
		t.Fatal("snapshot mutation leaked into the generator")
	}
}

func TestTimestampBetweenDegenerateWindow(t *testing.T) {
	g := NewGenerator(1)
	at := time.Unix(1690000000, 0)
	if got := g.timestampBetweenLocked(at, at); got != at.Unix() {
		t.Fatalf("degenerate window must pin to start, got %d", got)
	}
	if got := g.timestampBetweenLocked(at, at.Add(-time.Minute)); got != at.Unix() {
		t.Fatalf("inverted window must pin to start, got %d", got)
	}
}
