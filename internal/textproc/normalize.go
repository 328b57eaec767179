package textproc

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

var markdownParser = goldmark.New().Parser()

// maxRenderPasses acota el re-parseo del contenido de código y de las entidades.
const maxRenderPasses = 8

// Las claves largas van primero: strings.Replacer compara en orden de argumentos.
var speechReplacer = strings.NewReplacer(
	"e.g.", "for example",
	"i.e.", "that is",
	"etc.", "etcetera",
	"{}", " curly braces ",
	"()", " parentheses ",
	"[]", " square brackets ",
	"/", " slash ",
	"\\", " backslash ",
	"=", " equals ",
	">", " greater than ",
	"<", " less than ",
)

var spaceBeforePunct = regexp.MustCompile(`\s+([.,!?])`)

// NormalizeForSpeech convierte Markdown en prosa plana apta para TTS.
func NormalizeForSpeech(markdown string) string {
	text := renderUntilStable(markdown)
	text = speechReplacer.Replace(text)
	text = collapseSpace(text)
	text = spaceBeforePunct.ReplaceAllString(text, "$1")
	return strings.TrimSpace(text)
}

// renderUntilStable repite renderPlain hasta que la salida deja de cambiar. El
// código y las entidades se emiten como texto literal y pueden contener Markdown.
func renderUntilStable(markdown string) string {
	text := markdown
	for i := 0; i < maxRenderPasses; i++ {
		next := renderPlain([]byte(text))
		if collapseSpace(next) == collapseSpace(text) {
			return next
		}
		text = next
	}
	return text
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// renderPlain recorre el AST y conserva solo el texto visible.
func renderPlain(src []byte) string {
	doc := markdownParser.Parse(gmtext.NewReader(src))

	var buf bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				buf.Write(decodeEntities(node.Segment.Value(src)))
				if node.SoftLineBreak() || node.HardLineBreak() {
					buf.WriteByte(' ')
				}
			}
			return ast.WalkContinue, nil
		case *ast.String:
			if entering {
				buf.Write(decodeEntities(node.Value))
			}
			return ast.WalkContinue, nil
		case *ast.AutoLink:
			if entering {
				buf.Write(node.Label(src))
			}
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					segment := lines.At(i)
					buf.Write(segment.Value(src))
				}
				buf.WriteByte('\n')
			}
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		if !entering && n.Type() == ast.TypeBlock {
			buf.WriteByte('\n')
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

func decodeEntities(value []byte) []byte {
	return util.ResolveEntityNames(util.ResolveNumericReferences(util.UnescapePunctuations(value)))
}
