/*
Copyright © 2018 the Flowsim authors.
This file is part of Flowsim.

Flowsim is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Flowsim is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Flowsim.  If not, see <http://www.gnu.org/licenses/>.
*/

// Command flowsim is a command-line interface for the flowsim process
// flowsheet simulator.
package main

import (
	"fmt"
	"os"

	"github.com/processmodel/flowsim/flowsimutil"
)

func main() {
	if err := flowsimutil.Root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}
}
