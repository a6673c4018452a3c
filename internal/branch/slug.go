package branch

import (
	"strings"
	"unicode/utf8"
)

// MaxSlugLength is the longest slug Slugify returns.
const MaxSlugLength = 50

// unknownTermToken replaces a Han character with no dictionary entry.
const unknownTermToken = "item"

// terms maps common Chinese domain vocabulary to English slug words.
var terms = map[string]string{
	"用户":  "user",
	"登录":  "login",
	"注册":  "register",
	"管理":  "manage",
	"系统":  "system",
	"页面":  "page",
	"功能":  "feature",
	"接口":  "api",
	"数据库": "database",
	"前端":  "frontend",
	"后端":  "backend",
	"服务":  "service",
	"认证":  "auth",
	"权限":  "permission",
	"支付":  "payment",
	"订单":  "order",
	"商品":  "product",
	"列表":  "list",
	"详情":  "detail",
	"搜索":  "search",
	"筛选":  "filter",
	"排序":  "sort",
	"分页":  "pagination",
	"上传":  "upload",
	"下载":  "download",
	"导入":  "import",
	"导出":  "export",
	"配置":  "config",
	"设置":  "settings",
	"优化":  "optimize",
	"修复":  "fix",
	"更新":  "update",
	"删除":  "delete",
	"添加":  "add",
	"创建":  "create",
	"编辑":  "edit",
	"查看":  "view",
	"保存":  "save",
	"取消":  "cancel",
	"确认":  "confirm",
	"提交":  "submit",
	"发布":  "publish",
	"部署":  "deploy",
}

// longestTerm is the rune length of the longest dictionary key.
var longestTerm = func() int {
	n := 0
	for k := range terms {
		if l := utf8.RuneCountInString(k); l > n {
			n = l
		}
	}
	return n
}()

// Slugify reduces free text to a lowercase ASCII slug matching ^[a-z0-9-]*$,
// at most MaxSlugLength long. Known Chinese terms are translated, other Han
// characters become "item", and every other character outside [a-z0-9]
// acts as a separator. The result may be empty.
func Slugify(text string) string {
	s := transliterate(strings.TrimSpace(strings.ToLower(text)))

	var b strings.Builder
	b.Grow(len(s))
	prevHyphen := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			prevHyphen = false
			continue
		}
		if !prevHyphen {
			b.WriteByte('-')
			prevHyphen = true
		}
	}

	slug := strings.Trim(b.String(), "-")
	if len(slug) > MaxSlugLength {
		slug = strings.TrimRight(slug[:MaxSlugLength], "-")
	}
	return slug
}

// transliterate replaces runs of Han characters with hyphen-delimited
// English words, preferring the longest dictionary match at each position.
func transliterate(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(runes); {
		if !isHan(runes[i]) {
			b.WriteRune(runes[i])
			i++
			continue
		}
		word, n := lookupTerm(runes[i:])
		b.WriteByte('-')
		b.WriteString(word)
		b.WriteByte('-')
		i += n
	}
	return b.String()
}

// lookupTerm returns the translation of the longest term prefixing runes,
// and how many runes it consumed.
func lookupTerm(runes []rune) (string, int) {
	for n := min(longestTerm, len(runes)); n > 0; n-- {
		if word, ok := terms[string(runes[:n])]; ok {
			return word, n
		}
	}
	return unknownTermToken, 1
}

// isHan reports whether r is in the CJK Unified Ideographs block used for
// common Chinese text.
func isHan(r rune) bool {
	return r >= '一' && r <= '龥'
}
