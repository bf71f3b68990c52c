package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/gaurav-shinde-07/clueso-ai/internal/model"
)

func completedRecording() model.Recording {
	rec := model.NewRecording("rec-1", time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	rec.Metadata.Duration = 42
	rec.OriginalTranscript = "open settings then save"
	g := model.Guide{
		Title: "Create a project",
		Steps: []model.GuideStep{
			{Title: "Open settings", NarrationText: "Open settings.", AudioURL: "http://x/audio_rec-1_0.mp3"},
			{Title: "Save", ScreenshotURL: "http://x/s1.png"},
		},
	}
	g.Renumber()
	rec.Complete(g)
	return rec
}

func TestWriteGuide(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteGuide(&buf, completedRecording()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{GuideSheet, RecordingSheet}, f.GetSheetList())

	rows, err := f.GetRows(GuideSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Step", rows[0][0])
	assert.Equal(t, []string{"1", "Open settings", "", "0", "Open settings.", "", "http://x/audio_rec-1_0.mp3"}, rows[1])
	assert.Equal(t, "2", rows[2][0])
	assert.Equal(t, "http://x/s1.png", rows[2][5])

	summary, err := f.GetRows(RecordingSheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"Recording", "rec-1"}, summary[0])
	assert.Equal(t, []string{"Status", "completed"}, summary[3])
	assert.Equal(t, []string{"Audio status", "completed"}, summary[4])
	assert.Equal(t, []string{"Transcript", "open settings then save"}, summary[8])
}

func TestWriteGuideRequiresGuide(t *testing.T) {
	var buf bytes.Buffer
	err := WriteGuide(&buf, model.NewRecording("rec-2", time.Now()))
	assert.ErrorIs(t, err, ErrNoGuide)
	assert.Zero(t, buf.Len())
}
