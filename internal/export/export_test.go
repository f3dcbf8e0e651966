package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rtrgen/internal/model"
)

func testRecord() model.RunRecord {
	return model.RunRecord{
		Date:         time.Date(2025, 6, 19, 0, 0, 0, 0, time.UTC),
		MeetingPoint: "Radcliffe market",
		SpecialEvent: "Pride",
		MeetingMap:   "https://maps.example/start",
		Routes: []model.Route{
			{Label: "8k", Name: "Riverside", URL: "https://x/8k"},
			{Label: "5k", Name: "Park Loop", URL: "https://x/5k"},
			{Label: "10k", Name: "Unlinked"}, // excluded: no URL
		},
	}
}

func TestFileName(t *testing.T) {
	rec := testRecord()
	assert.Equal(t, "RTR_Thursday_19_June_2025_WhatsApp.txt", FileName(rec, model.PlatformWhatsApp))
	assert.Equal(t, "RTR_Thursday_19_June_2025_Email.txt", FileName(rec, model.PlatformEmail))
}

func TestWriteMessage(t *testing.T) {
	dir := t.TempDir()
	rec := testRecord()

	path, err := WriteMessage(dir, rec, model.PlatformInstagram, "hello\nworld\n")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "RTR_Thursday_19_June_2025_Instagram.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello\nworld\n", string(data))

	t.Run("rewrites are atomic replacements", func(t *testing.T) {
		path2, err := WriteMessage(dir, rec, model.PlatformInstagram, "second")
		require.NoError(t, err)
		assert.Equal(t, path, path2)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "second", string(data))
	})

	t.Run("empty dir is rejected", func(t *testing.T) {
		_, err := WriteMessage("", rec, model.PlatformEmail, "x")
		require.Error(t, err)
	})
}

func TestBuildICS(t *testing.T) {
	ics := BuildICS("RTR", []model.RunRecord{testRecord()})

	required := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"METHOD:PUBLISH",
		"BEGIN:VEVENT",
		"UID:rtr-20250619@rtrgen",
		"DTSTART;VALUE=DATE:20250619",
		"DTEND;VALUE=DATE:20250620",
		"SUMMARY:RTR run night",
		"LOCATION:Radcliffe market",
		"END:VEVENT",
		"END:VCALENDAR",
	}
	for _, field := range required {
		assert.Contains(t, ics, field)
	}

	t.Run("description covers included routes only", func(t *testing.T) {
		assert.Contains(t, ics, "Riverside")
		assert.Contains(t, ics, "Park Loop")
		assert.NotContains(t, ics, "Unlinked")
	})

	t.Run("one event per record", func(t *testing.T) {
		assert.Equal(t, 1, strings.Count(ics, "BEGIN:VEVENT"))
	})
}
