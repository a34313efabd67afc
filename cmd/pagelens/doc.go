// Command pagelens runs the inspector, the security checklist and the
// site-data tools from the shell.
//
// Usage:
//
//	pagelens inspect  -url URL | -file PATH  -xpath EXPR | -css QUERY [-format json|yaml|toml] [-out PATH]
//	pagelens pentest  -url URL | -file PATH | -dir DIR [-json] [-copy]
//	pagelens sitedata -url URL | -file PATH [-clear] [-reload]
//	pagelens serve    [-env FILE]
//
// -xpath and -css may be repeated; elements are exported in the order
// given. -live opens URLs in Chromium instead of fetching them. An -out
// path ending in .gz or .zst is compressed.
package main
