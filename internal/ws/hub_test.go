package ws

import "testing"

func TestHubAddAndRemoveClient(t *testing.T) {
	hub := NewHub(nil)

	hub.AddClient(1, nil, ConnInfo{ConnID: "a", UserID: 1})
	if len(hub.users) != 1 {
		t.Fatalf("expected user room to be created")
	}

	hub.RemoveClient(1, nil)
	if len(hub.users) != 0 {
		t.Fatalf("expected user room to be removed")
	}
}

func TestHubCountsConnectionsPerUser(t *testing.T) {
	hub := NewHub(nil)

	hub.AddClient(7, nil, ConnInfo{ConnID: "a", UserID: 7})
	if hub.Connections(7) != 1 {
		t.Fatalf("expected one connection for user 7")
	}
	if hub.Connections(8) != 0 {
		t.Fatalf("expected no connections for user 8")
	}
}

func TestHubGuardsEachConnectionWrite(t *testing.T) {
	hub := NewHub(nil)

	hub.AddClient(7, nil, ConnInfo{ConnID: "a", UserID: 7})
	for _, conns := range hub.users {
		for _, cl := range conns {
			cl.writeMu.Lock()
			cl.writeMu.Unlock()
		}
	}

	hub.SendToUser(9, []byte(`{}`))
	if hub.Connections(7) != 1 {
		t.Fatalf("sending to another user must not touch user 7")
	}
}
