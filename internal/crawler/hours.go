package crawler

import "strings"

// HourCandidates lists the forecast hours to try for target, best first:
// the exact hour, one hour earlier, then up to ahead hours later. Hours past
// maxHour are replaced by continuing downward so the list keeps ahead+2
// entries. Negative hours are never produced.
func HourCandidates(target, ahead, maxHour int) []int {
	out := make([]int, 0, ahead+2)
	out = append(out, target)
	down := target - 1
	if down >= 0 {
		out = append(out, down)
		down--
	}
	for step := 1; step <= ahead; step++ {
		h := target + step
		if h > maxHour {
			if down < 0 {
				continue
			}
			h = down
			down--
		}
		out = append(out, h)
	}
	return out
}

// MatchForecastHour returns the first link containing pattern(h) for the
// candidates of target, together with the hour that matched.
func MatchForecastHour(links []string, target, ahead, maxHour int, pattern func(hour int) string) (string, int, bool) {
	for _, h := range HourCandidates(target, ahead, maxHour) {
		needle := pattern(h)
		for _, link := range links {
			if strings.Contains(link, needle) {
				return link, h, true
			}
		}
	}
	return "", 0, false
}
