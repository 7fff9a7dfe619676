// Package registry loads class libraries from HCL files into a
// [ports.Hierarchy].
//
// A registry file declares one or more packages. Each package has a semantic
// version, may require other packages, and declares data types and module
// classes with their ports:
//
//	package "tabular" {
//	  version  = "1.4.0"
//	  requires = { basic = ">= 1.0, < 2.0" }
//	  include  = ["readers.hcl"]
//
//	  type "Table" {
//	    parents = ["Data"]
//	  }
//
//	  module "Filter" {
//	    input "in"    { type = "Table" }
//	    input "limit" {
//	      type    = "Integer"
//	      default = 100
//	    }
//	    input "range" {
//	      types   = ["Integer", "Integer"]
//	      labels  = ["min", "max"]
//	      default = [0, 10]
//	    }
//	    output "out" { type = "Table" }
//	  }
//	}
//
// Class names are global across packages. Parents may be declared in any
// file of the registry; classes are registered parents first. Defaults are
// HCL literals and are stored in their string form.
//
// Includes are resolved relative to the including file and may not leave
// its directory tree.
package registry
