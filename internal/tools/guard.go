package tools

import (
	"strings"
	"unicode"

	"github.com/sqlpilot/sqlpilot/internal/database"
)

var forbiddenVerbs = map[string]struct{}{
	"INSERT": {}, "UPDATE": {}, "DELETE": {}, "DROP": {}, "ALTER": {}, "CREATE": {},
	"TRUNCATE": {}, "GRANT": {}, "REVOKE": {}, "MERGE": {}, "REPLACE": {}, "UPSERT": {},
	"COPY": {}, "CALL": {}, "EXEC": {}, "EXECUTE": {}, "ATTACH": {}, "DETACH": {},
	"VACUUM": {}, "PRAGMA": {}, "RENAME": {},
}

// Functions sharing a name with a verb are allowed when called.
var callableVerbs = map[string]struct{}{
	"REPLACE": {},
}

var readOnlyLeaders = map[string]struct{}{
	"SELECT": {}, "WITH": {}, "SHOW": {}, "DESCRIBE": {}, "DESC": {}, "EXPLAIN": {},
	"VALUES": {}, "TABLE": {},
}

type sqlWord struct {
	text     string
	nextRune rune
}

// lexicon lists the quoting and comment rules of one dialect. Anything the
// scanner treats as a literal or comment is hidden from the keyword check, so
// each rule must hold only where the dialect really has it.
type lexicon struct {
	backslashEscapes bool // inside '...' and "..." strings
	escapeStrings    bool // E'...' strings with backslash escapes
	hashComments     bool
	backticks        bool
	dollarQuotes     bool
	// MySQL runs the body of /*! ... */ and requires a space after --.
	executableComments bool
	spacedDashComments bool
}

func lexiconFor(dialect database.Dialect) lexicon {
	switch dialect {
	case database.DialectMySQL:
		return lexicon{
			backslashEscapes:   true,
			hashComments:       true,
			backticks:          true,
			executableComments: true,
			spacedDashComments: true,
		}
	case database.DialectSQLite:
		return lexicon{backticks: true}
	case database.DialectPostgres, database.DialectDuckDB:
		return lexicon{escapeStrings: true, dollarQuotes: true}
	default:
		return lexicon{}
	}
}

// CheckReadOnly refuses anything but one read-only statement. Keywords inside
// string literals, quoted identifiers and comments of the given dialect are
// ignored.
func CheckReadOnly(dialect database.Dialect, sqlText string) error {
	words, statements := scanSQL(lexiconFor(dialect), sqlText)
	if statements > 1 {
		return &RefusedStatementError{Reason: "multiple statements are not allowed"}
	}
	if len(words) == 0 {
		return &RefusedStatementError{Reason: "the statement is empty"}
	}
	for _, word := range words {
		if _, forbidden := forbiddenVerbs[word.text]; !forbidden {
			continue
		}
		if _, callable := callableVerbs[word.text]; callable && word.nextRune == '(' {
			continue
		}
		return &RefusedStatementError{Reason: "the statement contains " + word.text}
	}
	if _, ok := readOnlyLeaders[words[0].text]; !ok {
		return &RefusedStatementError{Reason: "statements starting with " + words[0].text + " are not allowed"}
	}
	return nil
}

// scanSQL returns the upper-cased bare words of sqlText and the number of
// non-empty statements separated by semicolons.
func scanSQL(lex lexicon, sqlText string) ([]sqlWord, int) {
	runes := []rune(sqlText)
	words := make([]sqlWord, 0)
	statements := 0
	pending := false

	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case r == '\'' || r == '"':
			i = skipQuoted(runes, i, r, lex.backslashEscapes)
			pending = true
		case r == '`' && lex.backticks:
			i = skipQuoted(runes, i, r, false)
			pending = true
		case r == '-' && i+1 < len(runes) && runes[i+1] == '-' && (!lex.spacedDashComments || i+2 >= len(runes) || unicode.IsSpace(runes[i+2])):
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
		case r == '#' && lex.hashComments:
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
		case r == '/' && i+2 < len(runes) && runes[i+1] == '*' && (runes[i+2] == '!' || runes[i+2] == '+') && lex.executableComments:
			// The body is executed, so scan it as ordinary text.
			i += 3
			for i < len(runes) && unicode.IsDigit(runes[i]) {
				i++
			}
			pending = true
		case r == '/' && i+1 < len(runes) && runes[i+1] == '*':
			i += 2
			for i+1 < len(runes) && (runes[i] != '*' || runes[i+1] != '/') {
				i++
			}
			i += 2
		case r == '$' && lex.dollarQuotes && i+1 < len(runes) && runes[i+1] == '$':
			i += 2
			for i+1 < len(runes) && (runes[i] != '$' || runes[i+1] != '$') {
				i++
			}
			i += 2
			pending = true
		case r == ';':
			if pending {
				statements++
				pending = false
			}
			i++
		case (r == 'E' || r == 'e') && lex.escapeStrings && i+1 < len(runes) && runes[i+1] == '\'' && !continuesWord(runes, i):
			i = skipQuoted(runes, i+1, '\'', true)
			pending = true
		case unicode.IsLetter(r) || r == '_':
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_' || runes[i] == '$') {
				i++
			}
			word := sqlWord{text: strings.ToUpper(string(runes[start:i]))}
			j := i
			for j < len(runes) && unicode.IsSpace(runes[j]) {
				j++
			}
			if j < len(runes) {
				word.nextRune = runes[j]
			}
			// Qualified names such as t.delete are identifiers, not verbs.
			if start > 0 && runes[start-1] == '.' {
				word.text = ""
			}
			if word.text != "" {
				words = append(words, word)
			}
			pending = true
		default:
			if !unicode.IsSpace(r) {
				pending = true
			}
			i++
		}
	}
	if pending {
		statements++
	}
	return words, statements
}

func continuesWord(runes []rune, i int) bool {
	if i == 0 {
		return false
	}
	prev := runes[i-1]
	return unicode.IsLetter(prev) || unicode.IsDigit(prev) || prev == '_' || prev == '$'
}

func skipQuoted(runes []rune, i int, quote rune, backslashEscapes bool) int {
	i++
	for i < len(runes) {
		if runes[i] == quote {
			if i+1 < len(runes) && runes[i+1] == quote {
				i += 2
				continue
			}
			return i + 1
		}
		if runes[i] == '\\' && backslashEscapes {
			i += 2
			continue
		}
		i++
	}
	return i
}
