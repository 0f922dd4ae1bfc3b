// Package placeholder 负责 SQL 片段中通用标记 ? 的识别和替换
//
// 扫描时会跳过字符串, 引号标识符, 注释和 PostgreSQL 的 $tag$ 块,
// 所以 'a?b' 里的 ? 不是标记. ?? 表示字面量 ?.
// 标记可以显式指定绑定的字段 ?{Name}, 否则从前面的比较表达式推断, 如 id = ?
package placeholder

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const Marker = '?'

var (
	ErrUnterminated = errors.New("未闭合的引号或注释")
	ErrUnbalanced   = errors.New("括号不匹配")
	ErrTerminator   = errors.New("不允许出现语句结束符 ;")
	ErrNumbered     = errors.New("不允许使用已经编号的占位符, 请使用 ?")
	ErrBinding      = errors.New("非法的参数绑定")
	ErrLineComment  = errors.New("行注释会注释掉后面拼接的子句, 请使用 /* */")
)

// errTrailingComment 行注释一直到文本末尾
var errTrailingComment = errors.New("trailing line comment")

// 推断绑定: 标记前面是 列名 + 比较运算符
var inferRe = regexp.MustCompile(`(?i)([A-Za-z_][A-Za-z0-9_]*)\s*(?:<>|!=|<=|>=|=|<|>|\bNOT\s+I?LIKE|\bI?LIKE|\bNOT\s+IN\s*\(|\bIN\s*\()\s*$`)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Binding 标记绑定的字段名或者列名, 为空说明没法推断
type Binding struct {
	Name     string
	Explicit bool
}

// Template 是解析过的 SQL 片段, 渲染的时候才决定方言
type Template struct {
	text     string
	segments []string
	bindings []Binding
}

// Parse 解析片段. 片段本身不合法时返回错误
// 片段后面还会拼接别的子句, 所以不允许没有换行结束的 -- 和 # 注释
func Parse(text string) (*Template, error) {
	return parse(text, true)
}

func parse(text string, fragment bool) (*Template, error) {
	t := &Template{text: text}
	var (
		sb    strings.Builder
		last  int
		depth int
	)
	err := lex(text, func(i int) (int, error) {
		switch c := text[i]; c {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return 0, ErrUnbalanced
			}
		case ';':
			return 0, ErrTerminator
		case '#':
			// MySQL 的行注释. #> #>> #- 是 PostgreSQL 的 JSON 运算符
			if fragment && !strings.HasPrefix(text[i:], "#>") && !strings.HasPrefix(text[i:], "#-") &&
				strings.IndexByte(text[i:], '\n') < 0 {
				return 0, ErrLineComment
			}
		case '$':
			if i+1 < len(text) && text[i+1] >= '0' && text[i+1] <= '9' {
				return 0, ErrNumbered
			}
		case Marker:
			sb.WriteString(text[last:i])
			// ?? 转义
			if i+1 < len(text) && text[i+1] == Marker {
				sb.WriteByte(Marker)
				last = i + 2
				return 2, nil
			}
			n := 1
			var b Binding
			if i+1 < len(text) && text[i+1] == '{' {
				end := strings.IndexByte(text[i+2:], '}')
				if end < 0 {
					return 0, fmt.Errorf("%w: %s", ErrBinding, text[i:])
				}
				name := text[i+2 : i+2+end]
				if !identRe.MatchString(name) {
					return 0, fmt.Errorf("%w: %q", ErrBinding, name)
				}
				b = Binding{Name: name, Explicit: true}
				n = end + 3
			} else if m := inferRe.FindStringSubmatch(text[:i]); m != nil {
				b = Binding{Name: m[1]}
			}
			t.segments = append(t.segments, sb.String())
			t.bindings = append(t.bindings, b)
			sb.Reset()
			last = i + n
			return n, nil
		}
		return 1, nil
	})
	if err == errTrailingComment {
		if fragment {
			return nil, ErrLineComment
		}
		err = nil
	}
	if err != nil {
		return nil, err
	}
	if depth != 0 {
		return nil, ErrUnbalanced
	}
	sb.WriteString(text[last:])
	t.segments = append(t.segments, sb.String())
	return t, nil
}

// Len 标记数量
func (t *Template) Len() int {
	return len(t.bindings)
}

func (t *Template) Bindings() []Binding {
	return t.bindings
}

func (t *Template) String() string {
	return t.text
}

// Render 从 start 开始给标记编号, 返回下一个编号
func (t *Template) Render(sb *strings.Builder, s Style, start int) int {
	pos := start
	for i := range t.bindings {
		sb.WriteString(t.segments[i])
		s.Write(sb, pos)
		pos++
	}
	sb.WriteString(t.segments[len(t.segments)-1])
	return pos
}

// Resolve 解析并渲染, 返回渲染结果和标记数量
// 完整的语句末尾可以带行注释
func Resolve(text string, s Style, start int) (string, int, error) {
	t, err := parse(text, false)
	if err != nil {
		return "", 0, err
	}
	var sb strings.Builder
	sb.Grow(len(text) + 8)
	t.Render(&sb, s, start)
	return sb.String(), t.Len(), nil
}

// lex 遍历引号, 注释之外的每一个位置
// fn 返回消费的字节数
func lex(s string, fn func(i int) (int, error)) error {
	for i := 0; i < len(s); {
		switch c := s[i]; {
		case c == '\'' || c == '"' || c == '`':
			j, err := skipQuoted(s, i+1, c)
			if err != nil {
				return err
			}
			i = j
			continue
		case c == '-' && strings.HasPrefix(s[i:], "--"):
			j := strings.IndexByte(s[i:], '\n')
			if j < 0 {
				return errTrailingComment
			}
			i += j + 1
			continue
		case c == '/' && strings.HasPrefix(s[i:], "/*"):
			j := strings.Index(s[i+2:], "*/")
			if j < 0 {
				return ErrUnterminated
			}
			i += j + 4
			continue
		case c == '$':
			if tag, ok := dollarTag(s, i); ok {
				j := strings.Index(s[i+len(tag):], tag)
				if j < 0 {
					return ErrUnterminated
				}
				i += len(tag)*2 + j
				continue
			}
		}
		n, err := fn(i)
		if err != nil {
			return err
		}
		if n <= 0 {
			n = 1
		}
		i += n
	}
	return nil
}

// scan 是忽略错误的 lex, 用于统计已经渲染好的语句
func scan(s string, fn func(i int) int) {
	_ = lex(s, func(i int) (int, error) {
		return fn(i), nil
	})
}

// 引号内用两个引号转义
func skipQuoted(s string, i int, q byte) (int, error) {
	for i < len(s) {
		if s[i] == q {
			if i+1 < len(s) && s[i+1] == q {
				i += 2
				continue
			}
			return i + 1, nil
		}
		i++
	}
	return 0, ErrUnterminated
}

// dollarTag 识别 $$ 或者 $tag$, $1 不是
func dollarTag(s string, i int) (string, bool) {
	j := i + 1
	for j < len(s) && (s[j] == '_' || s[j] >= 'a' && s[j] <= 'z' || s[j] >= 'A' && s[j] <= 'Z' || s[j] >= '0' && s[j] <= '9') {
		j++
	}
	if j >= len(s) || s[j] != '$' {
		return "", false
	}
	if j > i+1 && s[i+1] >= '0' && s[i+1] <= '9' {
		return "", false
	}
	return s[i : j+1], true
}
