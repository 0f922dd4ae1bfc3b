package placeholder

import (
	"strconv"
	"strings"
)

// Style 决定通用标记最终被替换成什么
//   - Positional("$") => $1, $2 (PostgreSQL)
//   - Positional("?") => ?1, ?2 (SQLite)
//   - SingleMarker("?") => ?, ? (MySQL, SQLite)
type Style struct {
	token    string
	numbered bool
}

func Positional(prefix string) Style {
	return Style{token: prefix, numbered: true}
}

func SingleMarker(marker string) Style {
	return Style{token: marker}
}

func (s Style) Numbered() bool {
	return s.numbered
}

func (s Style) String() string {
	if s.numbered {
		return "Positional(" + s.token + ")"
	}
	return "SingleMarker(" + s.token + ")"
}

// Write 写入第 pos 个参数的占位符, pos 从 1 开始
func (s Style) Write(sb *strings.Builder, pos int) {
	sb.WriteString(s.token)
	if s.numbered {
		sb.WriteString(strconv.Itoa(pos))
	}
}

// Count 统计最终语句里的占位符数量
// Positional 风格下, 同一个编号出现多次只算一次
func (s Style) Count(query string) int {
	cnt := 0
	seen := make(map[string]struct{}, 8)
	scan(query, func(i int) int {
		if !strings.HasPrefix(query[i:], s.token) {
			return 0
		}
		j := i + len(s.token)
		if !s.numbered {
			cnt++
			return j - i
		}
		k := j
		for k < len(query) && query[k] >= '0' && query[k] <= '9' {
			k++
		}
		if k == j {
			return 0
		}
		if _, ok := seen[query[j:k]]; !ok {
			seen[query[j:k]] = struct{}{}
			cnt++
		}
		return k - i
	})
	return cnt
}
