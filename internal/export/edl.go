package export

import (
	"fmt"
	"math"
	"strings"
)

// FormatEDL renders the cut list as a CMX-3600 edit decision list.
// Source timecodes address the original file; record timecodes pack the
// kept clips back to back.
func FormatEDL(list CutList) string {
	fps := int(math.Round(list.FrameRate))
	if fps <= 0 {
		fps = 30
	}

	dropFrame := math.Abs(list.FrameRate-29.97) < 0.01 || math.Abs(list.FrameRate-59.94) < 0.01

	lines := []string{fmt.Sprintf("TITLE: %s", list.Title)}
	if dropFrame {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	recordMs := 0
	for i, clip := range list.Clips {
		srcIn := msToTimecode(clip.StartMs, fps)
		srcOut := msToTimecode(clip.EndMs, fps)
		recIn := msToTimecode(recordMs, fps)
		clipMs := clip.EndMs - clip.StartMs
		recOut := msToTimecode(recordMs+clipMs, fps)

		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", i+1, "AX", "V", srcIn, srcOut, recIn, recOut),
			fmt.Sprintf("* FROM CLIP NAME:  %s", clip.Name),
			fmt.Sprintf("* MEDIA PATH:  %s", clip.Path),
		)

		recordMs += clipMs
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func msToTimecode(ms int, fps int) string {
	totalFrames := int(math.Round(float64(ms) * float64(fps) / 1000.0))
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	seconds := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, seconds, frames)
}
