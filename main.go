package main

import "vwbuild/internal/vwbuild"

func main() {
	vwbuild.Main()
}
