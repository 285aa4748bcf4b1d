package session

// Locator strategies as they appear on the wire.
const (
	strategyID              = "id"
	strategyName            = "name"
	strategyCSS             = "css selector"
	strategyXPath           = "xpath"
	strategyLinkText        = "link text"
	strategyTagName         = "tag name"
	strategyAccessibilityID = "accessibility id"
)

// By locates elements.
type By struct {
	Using string
	Value string
}

func (b By) String() string {
	return b.Using + "=" + b.Value
}

// ByID matches the element id (resource-id on Android).
func ByID(id string) By { return By{Using: strategyID, Value: id} }

// ByName matches the name attribute.
func ByName(name string) By { return By{Using: strategyName, Value: name} }

// ByCSS matches a CSS selector.
func ByCSS(selector string) By { return By{Using: strategyCSS, Value: selector} }

// ByXPath matches an XPath expression.
func ByXPath(expr string) By { return By{Using: strategyXPath, Value: expr} }

// ByLinkText matches anchors by their exact text.
func ByLinkText(text string) By { return By{Using: strategyLinkText, Value: text} }

// ByTagName matches elements by tag.
func ByTagName(tag string) By { return By{Using: strategyTagName, Value: tag} }

// ByAccessibilityID matches the accessibility id (content-desc on Android,
// accessibilityIdentifier on iOS).
func ByAccessibilityID(id string) By { return By{Using: strategyAccessibilityID, Value: id} }
