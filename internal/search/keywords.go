package search

import "strings"

// KeywordTable maps lower-cased topic keywords to reference URLs. It is
// immutable after construction and safe for concurrent use.
type KeywordTable struct {
	links map[string][]string
}

// NewKeywordTable lower-cases every key. Entries without URLs are dropped.
// Keys that collide after lower-casing keep only one of their URL lists.
func NewKeywordTable(links map[string][]string) *KeywordTable {
	t := &KeywordTable{links: make(map[string][]string, len(links))}
	for k, urls := range links {
		if len(urls) == 0 {
			continue
		}
		key := strings.ToLower(k)
		if _, exists := t.links[key]; exists {
			continue
		}
		t.links[key] = append([]string(nil), urls...)
	}
	return t
}

// Lookup returns the first URL for the lower-cased query.
func (t *KeywordTable) Lookup(query string) (string, bool) {
	if t == nil {
		return "", false
	}
	urls, ok := t.links[strings.ToLower(query)]
	if !ok {
		return "", false
	}
	return urls[0], true
}

func (t *KeywordTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.links)
}

func DefaultKeywordTable() *KeywordTable {
	return NewKeywordTable(defaultKeywordLinks)
}

var defaultKeywordLinks = map[string][]string{
	"arduino":                             {"https://blog.arduino.cc/", "https://www.instructables.com/howto/Arduino/"},
	"bluetooth controlled robot car":      {"https://circuitdigest.com/bluetooth-projects", "https://www.electronicshub.org/bluetooth-controlled-car-using-arduino/"},
	"iot":                                 {"https://www.iotforall.com/", "https://www.hackster.io/iot/projects"},
	"capacitor":                           {"https://www.allaboutcircuits.com/textbook/direct-current/chpt-13/capacitors/", "https://www.electronics-tutorials.ws/capacitor/cap_1.html"},
	"capacitors":                          {"https://www.allaboutcircuits.com/textbook/direct-current/chpt-13/capacitors/", "https://www.electronics-tutorials.ws/capacitor/cap_1.html"},
	"capacitor types":                     {"https://www.allaboutcircuits.com/textbook/direct-current/chpt-13/capacitors/", "https://www.electronics-tutorials.ws/capacitor/cap_1.html"},
	"robotics":                            {"https://www.robotshop.com/community/blog", "https://robohub.org/"},
	"robo":                                {"https://www.robotshop.com/community/blog", "https://robohub.org/"},
	"robotics algorithms":                 {"https://towardsdatascience.com/tagged/robotics", "https://blogs.mathworks.com/robotics/"},
	"robo algo":                           {"https://towardsdatascience.com/tagged/robotics", "https://blogs.mathworks.com/robotics/"},
	"circuit":                             {"https://www.electronicshub.org/", "https://circuitdigest.com/"},
	"circuits":                            {"https://www.electronicshub.org/", "https://circuitdigest.com/"},
	"lead acid battery":                   {"https://batteryuniversity.com/article/bu-201-lead-acid-battery", "https://www.sciencedirect.com/topics/engineering/lead-acid-battery"},
	"lead  battery":                       {"https://batteryuniversity.com/article/bu-201-lead-acid-battery", "https://www.sciencedirect.com/topics/engineering/lead-acid-battery"},
	"electrolytic capacitors":             {"https://www.electronics-tutorials.ws/capacitor/cap_7.html", "https://www.eevblog.com/"},
	"electric capacitors":                 {"https://www.electronics-tutorials.ws/capacitor/cap_7.html", "https://www.eevblog.com/"},
	"ceramic capacitors":                  {"https://www.electronics-tutorials.ws/capacitor/cap_3.html", "https://components101.com/articles/ceramic-capacitor-types-and-applications"},
	"ceramic":                             {"https://www.electronics-tutorials.ws/capacitor/cap_3.html", "https://components101.com/articles/ceramic-capacitor-types-and-applications"},
	"electrolytic vs. ceramic capacitors": {"https://www.electronics-notes.com/articles/electronic_components/capacitors/capacitor-types-ceramic-electrolytic-tantalum.php", "https://www.arrow.com/en/research-and-events/articles/electrolytic-vs-ceramic-capacitors"},
	"electrolytic vs. ceramic":            {"https://www.electronics-notes.com/articles/electronic_components/capacitors/capacitor-types-ceramic-electrolytic-tantalum.php", "https://www.arrow.com/en/research-and-events/articles/electrolytic-vs-ceramic-capacitors"},
	"node mcu":                            {"https://randomnerdtutorials.com/tag/nodemcu/", "https://maker.pro/esp8266/tutorials"},
	"nodemcu":                             {"https://randomnerdtutorials.com/tag/nodemcu/", "https://maker.pro/esp8266/tutorials"},
	"lithium ion battery":                 {"https://batteryuniversity.com/learn/article/lithium_based_batteries", "https://www.electronics-notes.com/articles/electronic_components/battery-technology/lithium-ion-li-ion.php"},
	"lithium battery":                     {"https://batteryuniversity.com/learn/article/lithium_based_batteries", "https://www.electronics-notes.com/articles/electronic_components/battery-technology/lithium-ion-li-ion.php"},
	"line follower robot":                 {"https://www.robotshop.com/community/forum/t/line-follower-robots/27408", "https://www.instructables.com/howto/line+follower+robot/"},
	"line follow robot":                   {"https://www.robotshop.com/community/forum/t/line-follower-robots/27408", "https://www.instructables.com/howto/line+follower+robot/"},
	"home automation":                     {"https://www.home-assistant.io/blog/", "https://circuitdigest.com/home-automation-projects"},
	"automatic home":                      {"https://www.home-assistant.io/blog/", "https://circuitdigest.com/home-automation-projects"},
	"esp8266":                             {"https://randomnerdtutorials.com/esp8266-web-server/", "https://www.electronicwings.com/nodemcu/esp8266"},
	"chip":                                {"https://randomnerdtutorials.com/esp8266-web-server/", "https://www.electronicwings.com/nodemcu/esp8266"},
}
