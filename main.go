// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/dylibtree/dylibtree/cmd/dylibtree"

func main() {
	cmd.Execute()
}
