package export

import (
	"testing"

	"github.com/clipflow/clipflow-engine/internal/media"
	"github.com/clipflow/clipflow-engine/internal/project"
)

func testVideo() project.VideoRef {
	return project.VideoRef{
		ID:       "vid-1",
		Name:     "interview.mp4",
		Path:     "/media/interview.mp4",
		Duration: 10,
		Status:   project.StatusReady,
	}
}

func TestGenerateCutList_ComplementsSilences(t *testing.T) {
	silences := []media.Segment{
		{Start: 2, End: 3},
		{Start: 7, End: 8.5},
	}

	list := GenerateCutList(testVideo(), silences, 30, "")

	want := []Clip{
		{Name: "interview.mp4", Path: "/media/interview.mp4", StartMs: 0, EndMs: 2000},
		{Name: "interview.mp4", Path: "/media/interview.mp4", StartMs: 3000, EndMs: 7000},
		{Name: "interview.mp4", Path: "/media/interview.mp4", StartMs: 8500, EndMs: 10000},
	}
	if len(list.Clips) != len(want) {
		t.Fatalf("clips = %+v, want %d keep ranges", list.Clips, len(want))
	}
	for i, clip := range list.Clips {
		if clip != want[i] {
			t.Errorf("clip[%d] = %+v, want %+v", i, clip, want[i])
		}
	}
	if list.KeptMs != 7500 {
		t.Errorf("KeptMs = %d, want 7500", list.KeptMs)
	}
	if list.RemovedMs != 2500 {
		t.Errorf("RemovedMs = %d, want 2500", list.RemovedMs)
	}
	if list.Title != "interview.mp4" {
		t.Errorf("default title = %q", list.Title)
	}
}

func TestGenerateCutList_NoSilences(t *testing.T) {
	list := GenerateCutList(testVideo(), nil, 30, "Full take")

	if len(list.Clips) != 1 {
		t.Fatalf("clips = %+v, want the whole video", list.Clips)
	}
	if list.Clips[0].StartMs != 0 || list.Clips[0].EndMs != 10000 {
		t.Errorf("clip = %+v", list.Clips[0])
	}
	if list.Title != "Full take" {
		t.Errorf("title = %q", list.Title)
	}
}

func TestGenerateCutList_SilenceAtEdges(t *testing.T) {
	silences := []media.Segment{
		{Start: 0, End: 1},
		{Start: 9, End: 10},
	}
	list := GenerateCutList(testVideo(), silences, 30, "")

	if len(list.Clips) != 1 {
		t.Fatalf("clips = %+v, want single middle range", list.Clips)
	}
	if list.Clips[0].StartMs != 1000 || list.Clips[0].EndMs != 9000 {
		t.Errorf("clip = %+v", list.Clips[0])
	}
}

func TestGenerateCutList_AllSilent(t *testing.T) {
	list := GenerateCutList(testVideo(), []media.Segment{{Start: 0, End: 10}}, 30, "")

	if len(list.Clips) != 0 {
		t.Errorf("clips = %+v, want none", list.Clips)
	}
	if list.RemovedMs != 10000 {
		t.Errorf("RemovedMs = %d, want 10000", list.RemovedMs)
	}
}

func TestGenerateCutList_MergesOverlappingAndClamps(t *testing.T) {
	silences := []media.Segment{
		{Start: 4, End: 6},
		{Start: 5, End: 7},     // overlaps previous
		{Start: -2, End: 1},    // clamped to 0
		{Start: 9.5, End: 200}, // clamped to duration
		{Start: 3, End: 3},     // empty, dropped
	}
	list := GenerateCutList(testVideo(), silences, 30, "")

	want := []spanMs{{1000, 4000}, {7000, 9500}}
	if len(list.Clips) != 2 {
		t.Fatalf("clips = %+v, want 2 keep ranges", list.Clips)
	}
	for i, clip := range list.Clips {
		if clip.StartMs != want[i].startMs || clip.EndMs != want[i].endMs {
			t.Errorf("clip[%d] = [%d, %d], want [%d, %d]", i, clip.StartMs, clip.EndMs, want[i].startMs, want[i].endMs)
		}
	}
}
