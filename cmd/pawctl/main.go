// Command pawctl is the operator CLI: schema migrations, catalog seeding and rank lookups.
package main

import "github.com/pawtap/server/cmd/pawctl/root"

func main() {
	root.Execute()
}
