package validation

const (
	// DefaultRequestBodyLimit caps a JSON-RPC request body
	DefaultRequestBodyLimit = 128 * 1024 // 128 KB

	MaxShortTextLength = 128
)

var InjectionPatterns = []string{
	"${{", "{{", "}}", "${", "#{", "{%", "%}", "{{{", // templates/SSTI
	"%0a", "%0d", "%0a%0d", "%00", "%27", "%22", "%3c", "%3e", // encoded attacks (decode first)
	"${jndi:", "ldap://", "ldaps://", // JNDI/ldap
	"eval(", "exec(", "system(", "popen(", // dangerous funcs
}
