// Package fit implements the duration-fit retry loop.
//
// Each script has three lines, each shown in its own five second window. A
// take fits when every spoken line ends inside its window. A take that does not
// fit is discarded and the script is regenerated for the same unit.
package fit
