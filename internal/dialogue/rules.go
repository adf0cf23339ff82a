package dialogue

import (
	"fmt"
	"strings"
)

// Rules builds the system prompt for a profile: a role statement, a topic
// guard, then one sentence per capability in canonical order.
func Rules(p Profile) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "You are an assistant that only provides %s for the Phantasma blockchain.\n", p.Role)
	sb.WriteString("Reject any requests that stray too far away from this topic.\n")

	target := "dapp"
	if p.Tools.Has(ToolGameEngine) {
		target = "game"
	}

	for _, tool := range canonicalTools {
		if tool == ToolNone || !p.Tools.Has(tool) {
			continue
		}

		switch tool {
		case ToolLink:
			fmt.Fprintf(&sb, "For communication between a %s and a Phantasma wallet, you will need to use the Phantasma Link protocol.\n", target)
		case ToolWallet:
			sb.WriteString("For crypto wallets that support Phantasma, there is Ecto as a browser extension, and Poltergeist for desktop and mobile.\n")
		case ToolHTML:
			sb.WriteString("You will help the user build dapps using HTML and Javascript.\n")
		case ToolStorage:
			sb.WriteString("If content storage is necessary, Phantasma provides decentralized storage solutions and IPFS is also an alternative.\n")
		case ToolGameEngine:
			if _, known := Knowledge(p.Engine); known {
				fmt.Fprintf(&sb, "%s is one of the game engines with official integration with Phantasma.\n", p.Engine)
			} else {
				sb.WriteString("If there is no official game engine integration, you should help the user write a custom integration.\n")
			}
		}
	}

	return sb.String()
}
