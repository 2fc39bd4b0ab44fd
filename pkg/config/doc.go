// Package config loads page tables from YAML or JSON files.
//
// A page file maps paths to page definitions. A scalar value is the body of
// a static page; a mapping spells out the other fields:
//
//	port: 8080
//	host: 127.0.0.1
//	pages:
//	  /: "<h1>home</h1>"
//	  /old:
//	    redirect: http://${host}:${port}/
//	    status: 302
//	  /private:
//	    content: secret
//	    header: "Content-Type: text/plain"
//	    auth: user:pass
//	  /latin:
//	    content: "café"
//	    charset: iso-8859-1
//	    header:
//	      - "Content-Type: text/html; charset=ISO-8859-1"
//	      - "X-Served-By: hashserver"
//
// ${port} and ${host} in content and redirect targets are replaced with the
// address of the server the pages are loaded into. JSON files use the same
// structure. Several files can be merged with LoadGlob; a path may be defined
// only once across all of them.
package config
