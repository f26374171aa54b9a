package ws

import "testing"

func TestHubAddAndRemoveClient(t *testing.T) {
	hub := NewHub(nil)

	hub.AddClient("t1/school", nil, ConnInfo{ConnID: "c1"})
	if len(hub.rooms) != 1 {
		t.Fatalf("expected scope room to be created")
	}
	if hub.RoomSize("t1/school") != 1 {
		t.Fatalf("expected one connection in room")
	}

	hub.RemoveClient("t1/school", nil)
	if len(hub.rooms) != 0 {
		t.Fatalf("expected scope room to be removed")
	}
}

func TestHubRoomsAreScopeIsolated(t *testing.T) {
	hub := NewHub(nil)

	hub.AddClient("t1/school", nil, ConnInfo{ConnID: "c1"})
	hub.AddClient("t1/module-4", nil, ConnInfo{ConnID: "c2"})

	if hub.RoomSize("t1/school") != 1 || hub.RoomSize("t1/module-4") != 1 {
		t.Fatalf("expected each scope to hold its own connection")
	}

	hub.RemoveClient("t1/module-4", nil)
	if hub.RoomSize("t1/school") != 1 {
		t.Fatalf("removing from one scope must not drain the other")
	}
}

func TestHubRemoveUnknownConnIsNoop(t *testing.T) {
	hub := NewHub(nil)

	hub.RemoveClient("t1/school", nil)
	if hub.RoomSize("t1/school") != 0 {
		t.Fatalf("expected empty room")
	}
}
