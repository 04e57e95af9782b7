package zrm

import (
	"log/slog"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/go-metrics"
	"github.com/stretchr/testify/require"
)

func newBareGraph(clk clock.Clock, liveness time.Duration) *Graph {
	return newGraph(clk, liveness, slog.Default(), &metrics.BlackholeSink{}, nil)
}

func TestGraph_ApplyAndCount(t *testing.T) {
	g := newBareGraph(clock.NewMock(), time.Second)

	g.apply(&Announcement{
		NodeID:   "a",
		NodeName: "camera",
		Version:  1,
		Entities: []EntityInfo{
			{Kind: KindPublisher, Name: "camera/image"},
			{Kind: KindService, Name: "camera/set_exposure"},
		},
	})
	g.apply(&Announcement{
		NodeID:   "b",
		NodeName: "recorder",
		Version:  1,
		Entities: []EntityInfo{
			{Kind: KindSubscriber, Name: "camera/image"},
		},
	})

	require.Equal(t, 1, g.Count(KindPublisher, "camera/image"))
	require.Equal(t, 1, g.Count(KindSubscriber, "camera/image"))
	require.Equal(t, 1, g.Count(KindService, "camera/set_exposure"))
	require.Equal(t, 0, g.Count(KindClient, "camera/set_exposure"))
	require.ElementsMatch(t, []string{"camera", "recorder"}, g.NodeNames())
}

func TestGraph_SnapshotSupersedes(t *testing.T) {
	g := newBareGraph(clock.NewMock(), time.Second)

	g.apply(&Announcement{
		NodeID: "a", NodeName: "camera", Version: 1,
		Entities: []EntityInfo{{Kind: KindPublisher, Name: "camera/image"}},
	})
	// The publisher closed: the next snapshot simply no longer lists it.
	g.apply(&Announcement{NodeID: "a", NodeName: "camera", Version: 2})
	require.Equal(t, 0, g.Count(KindPublisher, "camera/image"))
}

func TestGraph_StaleSnapshotIgnored(t *testing.T) {
	g := newBareGraph(clock.NewMock(), time.Second)

	g.apply(&Announcement{NodeID: "a", NodeName: "camera", Version: 5})
	g.apply(&Announcement{
		NodeID: "a", NodeName: "camera", Version: 3,
		Entities: []EntityInfo{{Kind: KindPublisher, Name: "camera/image"}},
	})
	require.Equal(t, 0, g.Count(KindPublisher, "camera/image"),
		"an out-of-order older snapshot must not resurrect entities")
}

func TestGraph_Departure(t *testing.T) {
	g := newBareGraph(clock.NewMock(), time.Second)

	g.apply(&Announcement{
		NodeID: "a", NodeName: "camera", Version: 1,
		Entities: []EntityInfo{{Kind: KindPublisher, Name: "camera/image"}},
	})
	g.apply(&Announcement{NodeID: "a", NodeName: "camera", Departing: true})

	require.Equal(t, 0, g.Count(KindPublisher, "camera/image"))
	require.Empty(t, g.NodeNames())
}

func TestGraph_PruneByDeadline(t *testing.T) {
	clk := clock.NewMock()
	g := newBareGraph(clk, time.Second)

	g.apply(&Announcement{NodeID: "a", NodeName: "camera", Version: 1})
	g.apply(&Announcement{NodeID: "b", NodeName: "recorder", Version: 1})

	clk.Add(600 * time.Millisecond)
	// Only "b" refreshes before its deadline.
	g.apply(&Announcement{NodeID: "b", NodeName: "recorder", Version: 2})

	clk.Add(600 * time.Millisecond)
	g.prune()

	require.ElementsMatch(t, []string{"recorder"}, g.NodeNames(),
		"the node that stopped refreshing should be presumed gone")
}

func TestGraph_DuplicateNamesStayDistinct(t *testing.T) {
	g := newBareGraph(clock.NewMock(), time.Second)

	g.apply(&Announcement{
		NodeID: "a", NodeName: "driver", Version: 1,
		Entities: []EntityInfo{{Kind: KindPublisher, Name: "wheel/odom"}},
	})
	g.apply(&Announcement{
		NodeID: "b", NodeName: "driver", Version: 1,
		Entities: []EntityInfo{{Kind: KindPublisher, Name: "wheel/odom"}},
	})

	require.Equal(t, 2, g.Count(KindPublisher, "wheel/odom"),
		"same name, distinct node ids: both publishers are live")
	require.Equal(t, []string{"driver"}, g.NodeNames())
}
