package interview

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// DefaultQuestion is used when nothing usable can be recovered from a response.
const DefaultQuestion = "Could you tell me a little more about that?"

// Outcome records which parsing path produced a response.
type Outcome string

const (
	OutcomeStructured Outcome = "structured"
	OutcomeLegacy     Outcome = "legacy"
	OutcomeDefault    Outcome = "default"
)

// Parsed is the result of ParseResponse. Response always has a non-empty
// NextQuestion and a valid Face.
type Parsed struct {
	Response StructuredResponse
	Outcome  Outcome
	// Finished is the model's early-termination hint.
	Finished bool
}

var (
	markerRE      = regexp.MustCompile(`(?i)\[\s*(?:face\s*[:=]\s*)?([a-z]+)\s*\]`)
	fenceRE       = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
	spaceRE       = regexp.MustCompile(`[ \t]+`)
	salvageQRE    = regexp.MustCompile(`"next_question"\s*:\s*"((?:[^"\\]|\\.)*)`)
	salvageFaceRE = regexp.MustCompile(`"face"\s*:\s*"([a-zA-Z]+)"`)
	salvageFinRE  = regexp.MustCompile(`"(?:fin|finished)"\s*:\s*true`)
)

// ParseResponse turns a raw model payload into a StructuredResponse.
// It never fails: schema-valid JSON is returned as is, anything else goes
// through the legacy inline-tag path, and unrecoverable payloads get DefaultQuestion.
func ParseResponse(raw string) Parsed {
	text := stripFences(strings.TrimSpace(raw))
	if !hasContent(text) {
		return defaultParsed(false)
	}

	if strings.HasPrefix(text, "{") {
		var fields map[string]any
		if err := json.Unmarshal([]byte(text), &fields); err == nil {
			return parseFields(fields)
		}
		return salvageJSON(text)
	}

	// A bare JSON literal (null, a number, an array) carries no question;
	// a JSON string is treated as free text.
	if json.Valid([]byte(text)) {
		var s string
		if err := json.Unmarshal([]byte(text), &s); err != nil {
			return defaultParsed(false)
		}
		text = s
	}

	return parseLegacy(text, false)
}

func parseFields(fields map[string]any) Parsed {
	question, _ := fields["next_question"].(string)
	question = strings.TrimSpace(question)
	faceStr, _ := fields["face"].(string)
	fin := boolField(fields, "fin") || boolField(fields, "finished")

	resp := StructuredResponse{
		Sequence:   intField(fields, "sequence"),
		IsFollowup: boolField(fields, "is_followup"),
		Finished:   fin,
	}
	resp.BeforeUserAnswer, _ = fields["before_user_answer"].(string)

	if question == "" {
		return defaultParsed(fin)
	}

	face := Expression(strings.ToLower(strings.TrimSpace(faceStr)))
	if face.Valid() && !hasMarker(question) {
		resp.NextQuestion = question
		resp.Face = face
		return Parsed{Response: resp, Outcome: OutcomeStructured, Finished: fin}
	}

	// Out-of-vocabulary face, or an inline tag leaked into the text.
	legacy := parseLegacy(question, fin)
	if legacy.Outcome == OutcomeDefault {
		return legacy
	}
	resp.NextQuestion = legacy.Response.NextQuestion
	resp.Face = legacy.Response.Face
	if face.Valid() && legacy.Response.Face == ExpressionNeutral {
		resp.Face = face
	}
	resp.Finished = legacy.Finished
	return Parsed{Response: resp, Outcome: OutcomeLegacy, Finished: legacy.Finished}
}

// salvageJSON handles truncated or otherwise broken JSON objects.
func salvageJSON(text string) Parsed {
	fin := salvageFinRE.MatchString(text)
	m := salvageQRE.FindStringSubmatch(text)
	if m == nil {
		return defaultParsed(fin)
	}
	question, err := strconv.Unquote(`"` + m[1] + `"`)
	if err != nil {
		question = m[1]
	}
	if f := salvageFaceRE.FindStringSubmatch(text); f != nil {
		question = "[" + f[1] + "] " + question
	}
	return parseLegacy(question, fin)
}

// parseLegacy extracts inline [tag] / [face:tag] markers and [END]/[FIN]
// completion tokens from free text.
func parseLegacy(text string, fin bool) Parsed {
	face := ExpressionNeutral
	found := false
	cleaned := markerRE.ReplaceAllStringFunc(text, func(tok string) string {
		word := strings.ToLower(markerRE.FindStringSubmatch(tok)[1])
		switch {
		case word == "end" || word == "fin":
			fin = true
			return ""
		case Expression(word).Valid():
			if !found {
				face = Expression(word)
				found = true
			}
			return ""
		}
		return tok
	})

	cleaned = strings.TrimSpace(spaceRE.ReplaceAllString(cleaned, " "))
	if !hasContent(cleaned) {
		return defaultParsed(fin)
	}
	return Parsed{
		Response: StructuredResponse{NextQuestion: cleaned, Face: face, Finished: fin},
		Outcome:  OutcomeLegacy,
		Finished: fin,
	}
}

func hasMarker(text string) bool {
	for _, m := range markerRE.FindAllStringSubmatch(text, -1) {
		word := strings.ToLower(m[1])
		if word == "end" || word == "fin" || Expression(word).Valid() {
			return true
		}
	}
	return false
}

func defaultParsed(fin bool) Parsed {
	return Parsed{
		Response: StructuredResponse{NextQuestion: DefaultQuestion, Face: ExpressionNeutral, Finished: fin},
		Outcome:  OutcomeDefault,
		Finished: fin,
	}
}

func stripFences(s string) string {
	if m := fenceRE.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

// hasContent reports whether s has at least one letter or digit.
func hasContent(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}) >= 0
}

func boolField(fields map[string]any, key string) bool {
	switch v := fields[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

func intField(fields map[string]any, key string) int {
	switch v := fields[key].(type) {
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}
