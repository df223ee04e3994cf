package feeds

import (
	"html"
	"regexp"
	"strings"

	"go-firstresponder/types"
)

// The RSS fallback is best effort: fields are pulled out with patterns and
// entries without a position are kept with HasCoordinates=false.
var (
	rssItemPattern  = regexp.MustCompile(`(?s)<item\b[^>]*>(.*?)</item>`)
	rssTitlePattern = regexp.MustCompile(`(?s)<title>(.*?)</title>`)
	rssAlertPattern = regexp.MustCompile(`(?s)<gdacs:alertlevel>(.*?)</gdacs:alertlevel>`)
	rssTypePattern  = regexp.MustCompile(`(?s)<gdacs:eventtype>(.*?)</gdacs:eventtype>`)
	rssIDPattern    = regexp.MustCompile(`(?s)<gdacs:eventid>(.*?)</gdacs:eventid>`)
	rssLatPattern   = regexp.MustCompile(`<geo:lat>\s*(-?[0-9.]+)\s*</geo:lat>`)
	rssLonPattern   = regexp.MustCompile(`<geo:long>\s*(-?[0-9.]+)\s*</geo:long>`)
	rssPointPattern = regexp.MustCompile(`<georss:point>\s*(-?[0-9.]+)[\s,]+(-?[0-9.]+)\s*</georss:point>`)
	rssCDATAPattern = regexp.MustCompile(`(?s)^<!\[CDATA\[(.*)\]\]>$`)
)

// Titles such as "Orange alert for earthquake in Chile" carry the level inline.
var rssAlertInTextPattern = regexp.MustCompile(`(?i)\b(red|orange|green)\b\s+alert|alert\s*level[:\s]+(red|orange|green)`)

// ParseRSS extracts hazard events from a GDACS-style RSS document.
func ParseRSS(doc string) []types.HazardEvent {
	items := rssItemPattern.FindAllStringSubmatch(doc, -1)
	events := make([]types.HazardEvent, 0, len(items))
	for _, m := range items {
		item := m[1]
		ev := types.HazardEvent{
			ID:         field(rssIDPattern, item),
			EventName:  field(rssTitlePattern, item),
			EventType:  field(rssTypePattern, item),
			AlertLevel: field(rssAlertPattern, item),
			Source:     "gdacs_rss",
		}
		if ev.AlertLevel == "" {
			if am := rssAlertInTextPattern.FindStringSubmatch(ev.EventName); am != nil {
				level := strings.ToLower(firstNonEmpty(am[1], am[2]))
				ev.AlertLevel = strings.ToUpper(level[:1]) + level[1:]
			}
		}

		if pm := rssPointPattern.FindStringSubmatch(item); pm != nil {
			lat, okLat := parseFloat(pm[1])
			lon, okLon := parseFloat(pm[2])
			if okLat && okLon {
				ev.Lat, ev.Lon, ev.HasCoordinates = lat, lon, true
			}
		}
		if !ev.HasCoordinates {
			latM := rssLatPattern.FindStringSubmatch(item)
			lonM := rssLonPattern.FindStringSubmatch(item)
			if latM != nil && lonM != nil {
				lat, okLat := parseFloat(latM[1])
				lon, okLon := parseFloat(lonM[1])
				if okLat && okLon {
					ev.Lat, ev.Lon, ev.HasCoordinates = lat, lon, true
				}
			}
		}

		if ev.EventName == "" && !ev.HasCoordinates {
			continue
		}
		events = append(events, ev)
	}
	return events
}

func field(p *regexp.Regexp, s string) string {
	m := p.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	v := strings.TrimSpace(m[1])
	if cm := rssCDATAPattern.FindStringSubmatch(v); cm != nil {
		v = strings.TrimSpace(cm[1])
	}
	return html.UnescapeString(v)
}
